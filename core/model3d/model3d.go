package model3d

import (
	"context"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
)

var (
	// errors
	ErrNotFound     = errors.New("model not found")
	ErrFileRequired = errors.New("a model file is required")

	storageFolder = "models"
	nowFunc       = time.Now // mockable
)

// Model is a 3D model file uploaded by a teacher. The file itself is an opaque blob.
type Model struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	File        string    `json:"file"` // download URL, set by the API layer
	FileKey     string    `json:"-"`
	ContentType string    `json:"content_type"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewModel contains information needed to upload a new Model.
type NewModel struct {
	Title   string `json:"title" form:"title" validate:"required,notblank,max=200"`
	Subject string `json:"subject" form:"subject" validate:"max=100"`
}

func (nm *NewModel) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Subject = core.CleanString(nm.Subject)
	return validate.Struct(nm)
}

type QueryFilter struct {
	UploadedBy string `query:"uploaded_by"`
	Subject    string `query:"subject"`
}

type (
	Repository interface {
		CreateModel(ctx context.Context, mdl Model) (Model, error)
		GetModel(ctx context.Context, id string) (Model, error)
		QueryModels(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Model, error)
	}

	ServiceInterface interface {
		Upload(ctx context.Context, uploaderID string, nm NewModel, file *core.UploadedFile) (Model, error)
		Get(ctx context.Context, id string) (Model, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Model, error)
		// Open returns the stored file of the Model; callers must close it.
		Open(ctx context.Context, id string) (Model, io.ReadCloser, error)
	}

	service struct {
		repo  Repository
		store core.FileStore
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(repo Repository, store core.FileStore) *service {
	return &service{repo: repo, store: store}
}

func (svc *service) Upload(ctx context.Context, uploaderID string, nm NewModel, file *core.UploadedFile) (Model, error) {
	if file == nil || len(file.Data) == 0 {
		return Model{}, core.NewFieldError("file", ErrFileRequired)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := core.UniqueFileKey(storageFolder, file.Filename)
	if err := svc.store.Put(ctx, key, file.Reader(), file.Size(), contentType); err != nil {
		return Model{}, errors.Wrap(err, "storing model file")
	}

	mdl, err := svc.repo.CreateModel(ctx, Model{
		Title:       nm.Title,
		Subject:     nm.Subject,
		FileKey:     key,
		ContentType: contentType,
		UploadedBy:  uploaderID,
		CreatedAt:   nowFunc().UTC(),
	})
	if err != nil {
		_ = svc.store.Delete(ctx, key)
		return Model{}, errors.Wrap(err, "creating model")
	}
	return mdl, nil
}

func (svc *service) Get(ctx context.Context, id string) (Model, error) {
	return svc.repo.GetModel(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Model, error) {
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryModels(ctx, filter, ordering)
}

func (svc *service) Open(ctx context.Context, id string) (Model, io.ReadCloser, error) {
	mdl, err := svc.repo.GetModel(ctx, id)
	if err != nil {
		return Model{}, nil, err
	}
	rc, err := svc.store.Get(ctx, mdl.FileKey)
	if err != nil {
		if errors.Cause(err) == core.ErrFileNotFound {
			return Model{}, nil, ErrNotFound
		}
		return Model{}, nil, errors.Wrap(err, "opening model file")
	}
	return mdl, rc, nil
}

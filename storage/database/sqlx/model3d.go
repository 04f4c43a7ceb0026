package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/model3d"
)

const modelColumns = `id, title, subject, file_key, content_type, uploaded_by, created_at`

var modelOrderable = []string{"title", "subject", "created_at"}

type modelRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Subject     string      `db:"subject"`
	FileKey     string      `db:"file_key"`
	ContentType string      `db:"content_type"`
	UploadedBy  null.String `db:"uploaded_by"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (row modelRow) model() model3d.Model {
	return model3d.Model{
		ID:          row.ID,
		Title:       row.Title,
		Subject:     row.Subject,
		FileKey:     row.FileKey,
		ContentType: row.ContentType,
		UploadedBy:  row.UploadedBy.String,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type modelRepository struct {
	exec core.DBExecutor
}

var _ model3d.Repository = (*modelRepository)(nil) // interface compliance check

func NewModelRepository(exec core.DBExecutor) *modelRepository {
	return &modelRepository{exec: exec}
}

func (repo *modelRepository) CreateModel(ctx context.Context, mdl model3d.Model) (model3d.Model, error) {
	mdl.ID = uuid.New().String()
	mdl.CreatedAt = mdl.CreatedAt.UTC()

	query := repo.exec.Rebind(`INSERT INTO model3d (` + modelColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.exec.ExecContext(ctx, query,
		mdl.ID, mdl.Title, mdl.Subject, mdl.FileKey, mdl.ContentType,
		null.NewString(mdl.UploadedBy, mdl.UploadedBy != ""), mdl.CreatedAt)
	if err != nil {
		return model3d.Model{}, errors.Wrap(err, "inserting model")
	}
	return mdl, nil
}

func (repo *modelRepository) GetModel(ctx context.Context, id string) (model3d.Model, error) {
	if !validUUID(id) {
		return model3d.Model{}, model3d.ErrNotFound
	}

	var row modelRow
	query := repo.exec.Rebind(`SELECT ` + modelColumns + ` FROM model3d WHERE id = ?`)
	if err := repo.exec.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return model3d.Model{}, model3d.ErrNotFound
		}
		return model3d.Model{}, errors.Wrap(err, "finding model")
	}
	return row.model(), nil
}

func (repo *modelRepository) QueryModels(ctx context.Context, filter *model3d.QueryFilter, ordering []core.DBOrdering) ([]model3d.Model, error) {
	var w where
	if filter != nil {
		if filter.UploadedBy != "" {
			if !validUUID(filter.UploadedBy) {
				return []model3d.Model{}, nil
			}
			w.add("uploaded_by = ?", filter.UploadedBy)
		}
		if filter.Subject != "" {
			w.add("subject = ?", filter.Subject)
		}
	}

	q := `SELECT ` + modelColumns + ` FROM model3d` + w.String() + orderBy(ordering, modelOrderable, core.DBOrdering{Field: "created_at"})
	var rows []modelRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying models")
	}
	models := make([]model3d.Model, 0, len(rows))
	for _, row := range rows {
		models = append(models, row.model())
	}
	return models, nil
}

package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
	"github.com/trezcool/learnspace/services/email"
	"github.com/trezcool/learnspace/services/filestore"
	"github.com/trezcool/learnspace/services/logger"
	"github.com/trezcool/learnspace/storage/database/inmem"
)

// Stack is a fully wired set of services over in-memory storage.
type Stack struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	Store      core.FileStore

	UsrRepo user.Repository
	MdlRepo model3d.Repository
	AsgRepo assignment.Repository

	UsrSvc user.ServiceInterface
	MdlSvc model3d.ServiceInterface
	AsgSvc assignment.ServiceInterface
}

func NewStack() *Stack {
	conf := core.NewTestConfig()
	lgr := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	lgr.Enable(false)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	store := filestore.NewMemoryStore()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, lgr)

	s := &Stack{
		Conf:       conf,
		Logger:     lgr,
		Validate:   validate,
		Translator: translator,
		DB:         db,
		Store:      store,
		UsrRepo:    inmemdb.NewUserRepository(db),
		MdlRepo:    inmemdb.NewModelRepository(db),
		AsgRepo:    inmemdb.NewAssignmentRepository(db),
	}
	s.UsrSvc = user.NewService(s.UsrRepo)
	s.MdlSvc = model3d.NewService(s.MdlRepo, store)
	s.AsgSvc = assignment.NewServiceMock(conf, lgr, s.AsgRepo, s.UsrSvc, s.MdlSvc, store, mailSvc)
	return s
}

// Reset empties the database and the sent emails.
func (s *Stack) Reset() {
	s.DB.Reset()
	emailsvc.ClearSentMessages()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTeacher(t *testing.T, repo user.Repository, uname string, pwd ...string) user.User {
	var p string
	if len(pwd) > 0 {
		p = pwd[0]
	}
	return CreateUser(t, repo, "Teacher "+uname, uname, uname+"@test.cd", p, []string{user.RoleTeacher}, true)
}

func CreateStudent(t *testing.T, repo user.Repository, uname string, pwd ...string) user.User {
	var p string
	if len(pwd) > 0 {
		p = pwd[0]
	}
	return CreateUser(t, repo, "Student "+uname, uname, uname+"@test.cd", p, []string{user.RoleStudent}, true)
}

func CreateModel(t *testing.T, repo model3d.Repository, store core.FileStore, title string, uploader user.User) model3d.Model {
	key := core.UniqueFileKey("models", title+".glb")
	data := []byte("glTF-" + title)
	if err := store.Put(context.Background(), key, bytes.NewReader(data), int64(len(data)), "model/gltf-binary"); err != nil {
		t.Fatalf("CreateModel() failed: %v", err)
	}
	mdl, err := repo.CreateModel(context.Background(), model3d.Model{
		Title:       title,
		FileKey:     key,
		ContentType: "model/gltf-binary",
		UploadedBy:  uploader.ID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateModel() failed: %v", err)
	}
	return mdl
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	title string,
	teacher user.User,
	mdl model3d.Model,
	tasks []string,
	students []user.User,
	createdAt ...time.Time,
) assignment.Assignment {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	var ids []string
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	asg, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		Title:            title,
		TeacherID:        teacher.ID,
		ModelID:          mdl.ID,
		AssignedStudents: ids,
		Tasks:            tasks,
		CreatedAt:        tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

func CreateSubmission(
	t *testing.T,
	repo assignment.Repository,
	asg assignment.Assignment,
	student user.User,
	status assignment.Status,
	answers ...string,
) assignment.Submission {
	now := time.Now().UTC()
	sub := assignment.Submission{
		AssignmentID: asg.ID,
		StudentID:    student.ID,
		Content:      assignment.BuildContent(asg.Tasks, answers),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if status == assignment.StatusSubmitted {
		sub.SubmittedAt = &now
	}
	sub, err := repo.CreateSubmission(context.Background(), sub)
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

// PNG returns a w x h PNG image.
func PNG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("PNG() failed: %v", err)
	}
	return buf.Bytes()
}

package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/learnspace/apps/api/echo"
	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
	emailsvc "github.com/trezcool/learnspace/services/email"
	"github.com/trezcool/learnspace/services/filestore"
	logsvc "github.com/trezcool/learnspace/services/logger"
	"github.com/trezcool/learnspace/storage/database"
	inmemdb "github.com/trezcool/learnspace/storage/database/inmem"
	sqlxrepos "github.com/trezcool/learnspace/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Database is the storage the repositories run on: postgres, or memory when
// conf.Database.InMemory is set.
type Database struct {
	SQL *sqlx.DB
	Mem *inmemdb.DB
}

func (db *Database) Close() error {
	if db.SQL != nil {
		return db.SQL.Close()
	}
	return nil
}

type Repositories struct {
	dig.Out

	UserRepo       user.Repository
	ModelRepo      model3d.Repository
	AssignmentRepo assignment.Repository
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *Database {
	if conf.Database.InMemory {
		loggerParam.Logger.Warn("running on an in-memory database: data will not survive a restart")
		return &Database{Mem: inmemdb.Open()}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return &Database{SQL: db}
}

func newRepositories(db *Database) Repositories {
	if db.Mem != nil {
		return Repositories{
			UserRepo:       inmemdb.NewUserRepository(db.Mem),
			ModelRepo:      inmemdb.NewModelRepository(db.Mem),
			AssignmentRepo: inmemdb.NewAssignmentRepository(db.Mem),
		}
	}
	return Repositories{
		UserRepo:       sqlxrepos.NewUserRepository(db.SQL),
		ModelRepo:      sqlxrepos.NewModelRepository(db.SQL),
		AssignmentRepo: sqlxrepos.NewAssignmentRepository(db.SQL),
	}
}

func newFileStore(conf *core.Config, logger core.Logger) core.FileStore {
	store, err := filestore.New(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newFileStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(model3d.NewService, dig.As(new(model3d.ServiceInterface))))
	must(c.Provide(assignment.NewService, dig.As(new(assignment.ServiceInterface))))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

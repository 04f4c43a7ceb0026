package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/trezcool/goose"

	appfs "github.com/trezcool/learnspace/fs"
)

const (
	migrationsDir   = "migrations"
	migrateCommands = "up|up-by-one|up-to|down|down-to|redo"
)

type gooseFunc func(db *sql.DB, fsys fs.FS, dir string) error

type gooseVersionFunc func(db *sql.DB, fsys fs.FS, dir string, version int64) error

// mockable
var (
	gooseCommands = map[string]gooseFunc{
		"up":        goose.Up,
		"up-by-one": goose.UpByOne,
		"down":      goose.Down,
		"redo":      goose.Redo,
	}
	gooseVersionCommands = map[string]gooseVersionFunc{
		"up-to":   goose.UpTo,
		"down-to": goose.DownTo,
	}
)

func (cli *commandLine) migrate(args []string) error {
	var db *sql.DB
	if cli.db != nil {
		db = cli.db.DB
	}

	command := args[0]
	if run, ok := gooseCommands[command]; ok {
		return run(db, appfs.FS, migrationsDir)
	}
	if run, ok := gooseVersionCommands[command]; ok {
		if len(args) < 2 {
			return fmt.Errorf("%s must be of form: migrate %s VERSION", command, command)
		}
		version, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("version must be a number (got '%s')", args[1])
		}
		return run(db, appfs.FS, migrationsDir, version)
	}
	return fmt.Errorf("%q: no such command", command)
}

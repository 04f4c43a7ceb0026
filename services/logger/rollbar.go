package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/user"
)

const (
	levelDebug    = "DEBUG"
	levelInfo     = "INFO"
	levelWarn     = "WARN"
	levelError    = "ERROR"
	levelCritical = "CRITICAL"
)

// RollbarLogger reports to rollbar (when enabled) and mirrors every entry to std.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetServerRoot("github.com/trezcool/learnspace")
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare moves the first user.User found in args to the rollbar person, and drops the others.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var person *user.User
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch usr := arg.(type) {
		case user.User:
			if person == nil {
				person = &usr
			}
		case *user.User:
			if person == nil && usr != nil {
				person = usr
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}

	if person != nil {
		rollbar.SetPerson(person.ID, person.DisplayName(), person.Email)
	} else {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		switch usr := arg.(type) {
		case user.User:
			l.std.Printf("\tuser: %s (%s)", usr.ID, usr.DisplayName())
		case *user.User:
			if usr != nil {
				l.std.Printf("\tuser: %s (%s)", usr.ID, usr.DisplayName())
			}
		default:
			l.std.Printf("\t%+v", arg)
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(levelDebug, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(levelInfo, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(levelWarn, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(levelError, msg, args)
}

// Fatal flushes rollbar before exiting.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(levelCritical, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}

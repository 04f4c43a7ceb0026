package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dig_container "github.com/trezcool/learnspace/apps/api/di/dig"
	echoapi "github.com/trezcool/learnspace/apps/api/echo"
	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/user"
)

func startWithDig() {
	c := dig_container.New()

	// custom validators, before serving
	must(c.Invoke(func(validate *validator.Validate, translator ut.Translator) {
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
	}))

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *dig_container.Database,
		server *echoapi.Server,
	) {
		apiLogger.Info(fmt.Sprintf("LearnSpace API initializing : version %q, env %s", conf.Build, conf.Env))
		warnDevBackends(conf, apiLogger)

		// submission emails and password checks need these before the first request
		core.ParseEmailTemplates(apiLogger)
		user.LoadCommonPasswords(apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("LearnSpace API stopped")

		go serveDebug(conf, apiLogger)
		go server.Start()

		awaitShutdown(conf, apiLogger, server)
	}))
}

// warnDevBackends logs the backends that lose data or do not deliver it.
func warnDevBackends(conf *core.Config, logger core.Logger) {
	if conf.Database.InMemory {
		logger.Warn("using the in-memory database: users, assignments and submissions are lost on restart")
	}
	if conf.Storage.Driver != "b2" {
		logger.Info(fmt.Sprintf("storing models and screenshots under %s", conf.Storage.LocalDir))
	}
	if conf.Debug || conf.SendgridApiKey == "" {
		logger.Warn("no sendgrid key: submission emails are printed to the console")
	}
}

// serveDebug blocks serving /debug/pprof, /debug/vars and /metrics on the debug address.
func serveDebug(conf *core.Config, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage.Driver)
	expvar.Publish("inMemoryDB", expvar.Func(func() interface{} { return conf.Database.InMemory }))

	http.Handle("/metrics", promhttp.Handler())

	if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
		logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
	}
}

// awaitShutdown blocks until the server fails or a shutdown signal arrives,
// then gives in-flight saves ShutdownTimeout to complete.
func awaitShutdown(conf *core.Config, logger core.Logger, server *echoapi.Server) {
	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/services/logger"
)

func main() {
	conf := core.NewConfig()
	lgr := logsvc.NewRollbarLogger(log.New(os.Stderr, "LEARNSPACE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	lgr.Enable(conf.RollbarToken != "" && !conf.Debug)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	a := newApp(conf, lgr, os.Stdin, os.Stdout, signals)
	a.terminal = term.IsTerminal(int(syscall.Stdin))
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

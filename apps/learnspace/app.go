package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/learnspace/client"
	"github.com/trezcool/learnspace/core"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errAborted = errors.New("aborted")
)

// app is what every command shares: configuration, the API client and the terminal.
type app struct {
	conf        *core.Config
	logger      core.Logger
	api         *client.Client
	baseURL     string
	sessionFile string

	out      io.Writer
	lines    <-chan string // stdin, line by line; closed on EOF
	signals  <-chan os.Signal
	terminal bool // stdin is a terminal: passwords are read without echo
}

func newApp(conf *core.Config, logger core.Logger, in io.Reader, out io.Writer, signals <-chan os.Signal) *app {
	return &app{
		conf:        conf,
		logger:      logger,
		baseURL:     conf.Client.BaseURL,
		sessionFile: conf.Client.SessionFile,
		out:         out,
		lines:       readLines(in),
		signals:     signals,
	}
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// connect builds the API client, with the saved session when there is one.
func (a *app) connect() {
	a.api = client.New(a.baseURL, client.WithTimeout(a.conf.Client.Timeout))
	s, err := client.LoadSession(a.sessionFile)
	switch {
	case err == nil:
		a.api.SetSession(s)
	case err != client.ErrNoSession:
		a.logger.Warn("ignoring saved session", err)
	}
}

func (a *app) session() (*client.Session, error) {
	if s := a.api.Session(); s != nil {
		return s, nil
	}
	return nil, errors.New("not logged in: run `learnspace login` first")
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// ask prints prompt and waits for a line. ok is false on EOF or on a signal.
func (a *app) ask(ctx context.Context, prompt string) (line string, ok bool) {
	a.printf("%s", prompt)
	select {
	case line, ok = <-a.lines:
		return strings.TrimSpace(line), ok
	case <-a.signals:
		a.printf("\n")
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func (a *app) confirm(ctx context.Context, prompt string) bool {
	answer, ok := a.ask(ctx, prompt+" [y/N] ")
	if !ok {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

func (a *app) askPassword(ctx context.Context, prompt string) (string, error) {
	if a.terminal {
		a.printf("%s", prompt)
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		a.printf("\n")
		if err != nil {
			return "", errors.Wrap(err, "reading password")
		}
		return string(pwd), nil
	}
	pwd, ok := a.ask(ctx, prompt)
	if !ok {
		return "", errAborted
	}
	return pwd, nil
}

// describe turns an API error into something a user can act on.
func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return "session expired or missing: run `learnspace login`"
	case errors.Is(err, client.ErrForbidden):
		return "not allowed: " + err.Error()
	case errors.Is(err, client.ErrNotFound):
		return "not found"
	}
	return err.Error()
}

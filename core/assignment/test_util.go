package assignment

import (
	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

// NewServiceMock returns a service that sends its notifications synchronously.
func NewServiceMock(
	conf *core.Config,
	logger core.Logger,
	repo Repository,
	usrSvc user.ServiceInterface,
	mdlSvc model3d.ServiceInterface,
	store core.FileStore,
	mailSvc core.EmailService,
) ServiceInterface {
	svc := NewService(conf, logger, repo, usrSvc, mdlSvc, store, mailSvc)
	// run synchronously
	svc.runAsync = func(f func()) { f() }
	return svc
}

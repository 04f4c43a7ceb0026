package filestore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
)

// New returns the FileStore selected by conf.Storage.Driver: memory, local (default) or b2.
func New(ctx context.Context, conf *core.Config) (core.FileStore, error) {
	switch conf.Storage.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "b2":
		return NewB2Store(ctx, conf.Storage.B2AccountID, conf.Storage.B2AppKey, conf.Storage.B2Bucket)
	case "local", "":
		return NewLocalStore(conf.Storage.LocalDir)
	}
	return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}

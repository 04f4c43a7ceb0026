package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
)

var errUnsafeKey = errors.New("unsafe storage key")

// localStore keeps files under a root directory; keys are slash-separated relative paths.
type localStore struct {
	root string
}

var _ core.FileStore = (*localStore)(nil) // interface compliance check

func NewLocalStore(root string) (*localStore, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &localStore{root: root}, nil
}

func (s *localStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errUnsafeKey
	}
	return filepath.Join(s.root, clean), nil
}

func (s *localStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating folder")
	}

	// write to a temp file first so readers never see partial files
	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fp), "moving file")
}

func (s *localStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, core.ErrFileNotFound
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

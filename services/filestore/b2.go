package filestore

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
)

// b2Store keeps files in a Backblaze B2 bucket.
type b2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ core.FileStore = (*b2Store)(nil) // interface compliance check

func NewB2Store(ctx context.Context, accountID, appKey, bucketName string) (*b2Store, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Store{client: client, bucket: bucket}, nil
}

func (s *b2Store) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "writing object")
	}
	return errors.Wrap(w.Close(), "closing object writer")
}

func (s *b2Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "reading object attrs")
	}
	return obj.NewReader(ctx), nil
}

func (s *b2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

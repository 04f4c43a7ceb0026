package core

import (
	"bytes"
	"context"
	"image"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrNotAnImage   = errors.New("file is not a supported image")

	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// FileStore is any service that can store uploaded blobs (model files, screenshots).
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get returns ErrFileNotFound when nothing is stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// UploadedFile is a file received from a client, fully read in memory.
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (f *UploadedFile) Size() int64 { return int64(len(f.Data)) }

func (f *UploadedFile) Reader() io.Reader { return bytes.NewReader(f.Data) }

// UniqueFileKey builds a storage key of the form `folder/YYYYMMDD-<uuid>-<sanitized name>`.
func UniqueFileKey(folder, filename string, now ...time.Time) string {
	tstamp := time.Now().UTC()
	if len(now) > 0 {
		tstamp = now[0].UTC()
	}

	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	if len(name) > 64 {
		ext := path.Ext(name)
		name = name[:64-len(ext)] + ext
	}

	return path.Join(folder, tstamp.Format("20060102")+"-"+uuid.New().String()+"-"+name)
}

// DetectImage sniffs data and returns its mime type, or ErrNotAnImage.
func DetectImage(data []byte) (string, error) {
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", ErrNotAnImage
	}
	return mime.String(), nil
}

// NormalizeImage downsizes images wider than maxWidth, keeping the aspect ratio and the
// original encoding. Images already within bounds (or maxWidth <= 0) are returned untouched.
func NormalizeImage(file UploadedFile, maxWidth int) (UploadedFile, error) {
	mime, err := DetectImage(file.Data)
	if err != nil {
		return UploadedFile{}, err
	}
	file.ContentType = mime
	if maxWidth <= 0 {
		return file, nil
	}

	format, err := imaging.FormatFromFilename(file.Filename)
	if err != nil {
		// trust the content over the name
		format, err = imaging.FormatFromExtension(mimetype.Detect(file.Data).Extension())
		if err != nil {
			return file, nil // sniffable but not re-encodable (eg. webp): keep as is
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil || cfg.Width <= maxWidth {
		return file, nil
	}

	img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
	if err != nil {
		return UploadedFile{}, errors.Wrap(err, "decoding image")
	}
	img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, format); err != nil {
		return UploadedFile{}, errors.Wrap(err, "encoding image")
	}
	file.Data = buf.Bytes()
	return file, nil
}

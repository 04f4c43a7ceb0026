package core_test

import (
	"bytes"
	"image"
	_ "image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/tests"
)

func TestUniqueFileKey(t *testing.T) {
	now := time.Date(2021, 3, 4, 23, 0, 0, 0, time.FixedZone("WAT", 3600))

	tests := []struct {
		name       string
		filename   string
		wantPrefix string
		wantSuffix string
	}{
		{name: "plain", filename: "shot.png", wantPrefix: "shots/20210304-", wantSuffix: "-shot.png"},
		{name: "windows path", filename: `C:\Users\amy\my shot.png`, wantPrefix: "shots/20210304-", wantSuffix: "-my_shot.png"},
		{name: "traversal", filename: "../../etc/passwd", wantPrefix: "shots/20210304-", wantSuffix: "-passwd"},
		{name: "nothing left", filename: "...", wantPrefix: "shots/20210304-", wantSuffix: "-file"},
		{name: "long name", filename: strings.Repeat("a", 100) + ".glb", wantPrefix: "shots/20210304-", wantSuffix: "-" + strings.Repeat("a", 60) + ".glb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := UniqueFileKey("shots", tt.filename, now)
			assert.True(t, strings.HasPrefix(key, tt.wantPrefix), key)
			assert.True(t, strings.HasSuffix(key, tt.wantSuffix), key)
		})
	}

	assert.NotEqual(t, UniqueFileKey("shots", "a.png", now), UniqueFileKey("shots", "a.png", now))
}

func TestDetectImage(t *testing.T) {
	mime, err := DetectImage(testutil.PNG(t, 2, 2))
	assert.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = DetectImage([]byte("just text"))
	assert.Equal(t, ErrNotAnImage, err)
}

func TestNormalizeImage(t *testing.T) {
	wide := testutil.PNG(t, 100, 50)

	t.Run("downsized", func(t *testing.T) {
		got, err := NormalizeImage(UploadedFile{Filename: "wide.png", Data: wide}, 40)
		if assert.NoError(t, err) {
			assert.Equal(t, "image/png", got.ContentType)
			cfg, _, err := image.DecodeConfig(bytes.NewReader(got.Data))
			if assert.NoError(t, err) {
				assert.Equal(t, 40, cfg.Width)
				assert.Equal(t, 20, cfg.Height)
			}
		}
	})

	t.Run("name without extension", func(t *testing.T) {
		got, err := NormalizeImage(UploadedFile{Filename: "screenshot", Data: wide}, 40)
		if assert.NoError(t, err) {
			cfg, _, _ := image.DecodeConfig(bytes.NewReader(got.Data))
			assert.Equal(t, 40, cfg.Width)
		}
	})

	t.Run("small enough", func(t *testing.T) {
		got, err := NormalizeImage(UploadedFile{Filename: "wide.png", Data: wide}, 100)
		assert.NoError(t, err)
		assert.Equal(t, wide, got.Data)
	})

	t.Run("no limit", func(t *testing.T) {
		got, err := NormalizeImage(UploadedFile{Filename: "wide.png", Data: wide}, 0)
		assert.NoError(t, err)
		assert.Equal(t, wide, got.Data)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := NormalizeImage(UploadedFile{Filename: "x.png", Data: []byte("nope")}, 40)
		assert.Equal(t, ErrNotAnImage, err)
	})
}

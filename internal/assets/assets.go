// Package assets defines how post images are named, stored and released.
package assets

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Prefix is the path prefix of every stored image; the same prefix is the
// static read route.
const Prefix = "images/"

// ErrNotExist is returned when an asset is not in the store.
var ErrNotExist = errors.New("asset does not exist")

// Store persists binary assets by path.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
	// Stat returns ErrNotExist when nothing is stored at path.
	Stat(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GenerateName returns a collision resistant file name built from a random
// id and the client supplied file name.
func GenerateName(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		return uuid.NewString()
	}
	return uuid.NewString() + "-" + base
}

// Key strips the static prefix and any leading slash from an asset path and
// rejects paths that try to leave the image namespace.
func Key(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, Prefix)
	if p == "" || strings.Contains(p, "/") || p == "." || p == ".." {
		return "", ErrNotExist
	}
	return p, nil
}

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
}

// IsImage reports whether the MIME type is an accepted image type.
func IsImage(contentType string) bool {
	mt, _, _ := strings.Cut(contentType, ";")
	return imageTypes[strings.ToLower(strings.TrimSpace(mt))]
}

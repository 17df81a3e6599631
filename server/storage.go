package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var errTooLarge = errors.New("file too large")

// BlobStore keeps uploaded bytes on local disk. Paths handed out are relative to root.
type BlobStore struct {
	root string
	max  int64
}

func NewBlobStore(root string, max int64) *BlobStore { return &BlobStore{root: root, max: max} }

// Save writes r under dir with a uuid-prefixed copy of name and returns the relative path and size.
func (b *BlobStore) Save(dir, name string, r io.Reader) (string, int64, error) {
	full := filepath.Join(b.root, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", 0, err
	}
	rel := filepath.Join(dir, uuid.NewString()+"_"+safeName(name))
	dst, err := os.Create(filepath.Join(b.root, rel))
	if err != nil {
		return "", 0, err
	}
	src := r
	if b.max > 0 {
		src = io.LimitReader(r, b.max+1)
	}
	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && b.max > 0 && size > b.max {
		err = errTooLarge
	}
	if err != nil {
		_ = os.Remove(filepath.Join(b.root, rel))
		return "", 0, err
	}
	return rel, size, nil
}

func (b *BlobStore) Open(rel string) (*os.File, error) {
	f, err := os.Open(b.path(rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (b *BlobStore) Remove(rel string) error {
	err := os.Remove(b.path(rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (b *BlobStore) path(rel string) string {
	return filepath.Join(b.root, filepath.Clean("/"+rel))
}

// safeName strips directories and anything that would confuse a shell or a URL.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if out == "" || out == "." || out == ".." {
		return "file"
	}
	return out
}

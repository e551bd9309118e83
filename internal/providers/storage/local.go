package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider keeps objects on the local filesystem under root.
type LocalProvider struct {
	root          string
	publicBaseURL string
}

func NewLocal(root string, publicBaseURL string) (*LocalProvider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalProvider{root: abs, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (p *LocalProvider) Put(ctx context.Context, key string, contentType string, r io.Reader, size int64) (Object, error) {
	full, err := p.resolve(key)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Object{}, err
	}
	defer os.Remove(tmp.Name())

	reader := r
	if size > 0 {
		reader = io.LimitReader(r, size+1)
	}
	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Object{}, err
	}
	if size > 0 && written > size {
		return Object{}, ErrTooLarge
	}
	if written == 0 {
		return Object{}, ErrEmptyFile
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return Object{}, err
	}

	return Object{
		Key:         key,
		URL:         p.publicBaseURL + "/" + key,
		ContentType: contentType,
		Size:        written,
	}, nil
}

func (p *LocalProvider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (p *LocalProvider) Delete(_ context.Context, key string) error {
	full, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (p *LocalProvider) resolve(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	full := filepath.Join(p.root, clean)
	if !strings.HasPrefix(full, p.root+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return full, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a location does not resolve inside the upload directory.
var ErrOutsideRoot = errors.New("location outside upload directory")

// localStorage keeps every upload flat in a single directory.
// The directory must already exist; it is never created here.
type localStorage struct {
	root string
}

// NewLocal returns a Storage rooted at dir. The path is made absolute so that
// persisted locations do not depend on the process working directory.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	return &localStorage{root: abs}, nil
}

// Put writes r to <root>/<name> using exclusive create.
func (l *localStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if name == "" || name != filepath.Base(name) {
		return ObjectInfo{}, fmt.Errorf("invalid object name %q", name)
	}

	target := filepath.Join(l.root, name)
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return ObjectInfo{}, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(target)
		return ObjectInfo{}, err
	}

	st, err := os.Stat(target)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Name:         name,
		Location:     target,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens a previously stored file for reading.
func (l *localStorage) Get(ctx context.Context, location string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	path, err := l.resolve(location)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}

	info := ObjectInfo{
		Name:         filepath.Base(path),
		Location:     path,
		Size:         st.Size(),
		ContentType:  mime.TypeByExtension(filepath.Ext(path)),
		LastModified: st.ModTime(),
	}
	return f, info, nil
}

// Delete removes a stored file. Removing a file that is already gone is not an error.
func (l *localStorage) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve accepts either an absolute location under root or a bare name.
func (l *localStorage) resolve(location string) (string, error) {
	path := location
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return path, nil
}

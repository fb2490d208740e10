package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// localStorage keeps objects on the filesystem as root/<owner>/<name>.
// Writes go to a temp file in the partition and are published with a hard
// link, so readers see either nothing or the complete object and an existing
// name is never replaced.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem store rooted at root, creating it if missing.
// Owner partitions are created lazily on first write.
func NewLocal(root string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &localStorage{root: abs}, nil
}

// objectPath resolves (owner, name) and checks the result stays inside the
// owner's partition.
func (s *localStorage) objectPath(owner, name string) (partition, path string, err error) {
	if err := checkKey(owner, name); err != nil {
		return "", "", err
	}
	partition = filepath.Join(s.root, owner)
	if !strings.HasPrefix(partition, s.root+string(filepath.Separator)) {
		return "", "", ErrInvalidKey
	}
	path = filepath.Join(partition, name)
	if !strings.HasPrefix(path, partition+string(filepath.Separator)) {
		return "", "", ErrInvalidKey
	}
	return partition, path, nil
}

func (s *localStorage) Put(ctx context.Context, owner, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	partition, path, err := s.objectPath(owner, name)
	if err != nil {
		return ObjectInfo{}, err
	}

	if err := os.MkdirAll(partition, 0o750); err != nil {
		return ObjectInfo{}, ioFailure("create partition", err)
	}
	// Early exit only; the link below is what guarantees no-clobber.
	exists, err := s.Exists(ctx, owner, name)
	if err != nil {
		return ObjectInfo{}, err
	}
	if exists {
		return ObjectInfo{}, ErrAlreadyExists
	}

	tmp, err := os.CreateTemp(partition, ".upload-*")
	if err != nil {
		return ObjectInfo{}, ioFailure("create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hash := md5.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if err != nil {
		tmp.Close()
		return ObjectInfo{}, ioFailure("write object", err)
	}
	if opt.Size > 0 && size != opt.Size {
		tmp.Close()
		return ObjectInfo{}, ioFailure("write object", fmt.Errorf("short write: got %d of %d bytes", size, opt.Size))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ObjectInfo{}, ioFailure("sync object", err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectInfo{}, ioFailure("close object", err)
	}

	contentType := opt.ContentType
	if contentType == "" {
		if mt, err := mimetype.DetectFile(tmpPath); err == nil {
			contentType = mt.String()
		}
	}

	// Link fails with EEXIST instead of replacing, unlike rename.
	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, ErrAlreadyExists
		}
		return ObjectInfo{}, ioFailure("publish object", err)
	}

	return ObjectInfo{
		Owner:        owner,
		Name:         name,
		Size:         size,
		ETag:         hex.EncodeToString(hash.Sum(nil)),
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
		Metadata:     opt.Metadata,
	}, nil
}

func (s *localStorage) Get(ctx context.Context, owner, name string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	_, path, err := s.objectPath(owner, name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	st, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, ioFailure("stat object", err)
	}
	// Symlinks could point outside the partition.
	if !st.Mode().IsRegular() {
		return nil, ObjectInfo{}, ErrInvalidKey
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, ioFailure("open object", err)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(f); err == nil {
		contentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, ObjectInfo{}, ioFailure("rewind object", err)
	}

	return f, ObjectInfo{
		Owner:        owner,
		Name:         name,
		Size:         st.Size(),
		ContentType:  contentType,
		LastModified: st.ModTime(),
	}, nil
}

func (s *localStorage) Delete(ctx context.Context, owner, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, path, err := s.objectPath(owner, name)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return ioFailure("stat object", err)
	}
	// A concurrent delete may win the race; absence is the goal either way.
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioFailure("remove object", err)
	}
	return nil
}

// Exists is also Put's collision pre-check.
func (s *localStorage) Exists(ctx context.Context, owner, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, path, err := s.objectPath(owner, name)
	if err != nil {
		return false, err
	}
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioFailure("stat object", err)
	}
	return true, nil
}

func ioFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIOFailure, op, err)
}

package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/datachat/datachat/internal/storage"
)

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root %q: %w", root, err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}
	target, cleaned, err := s.resolve(key)
	if err != nil {
		return storage.Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return storage.Object{}, fmt.Errorf("create directory for %q: %w", cleaned, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return storage.Object{}, fmt.Errorf("put object %q: %w", cleaned, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return storage.Object{}, fmt.Errorf("put object %q: %w", cleaned, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return storage.Object{}, fmt.Errorf("put object %q: %w", cleaned, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return storage.Object{}, fmt.Errorf("put object %q: %w", cleaned, err)
	}
	sum := md5.Sum(data)
	return storage.Object{Key: cleaned, Size: int64(len(data)), ContentType: contentType, ETag: hex.EncodeToString(sum[:])}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, cleaned, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.NotFound(cleaned)
		}
		return nil, fmt.Errorf("get object %q: %w", cleaned, err)
	}
	return data, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}
	target, cleaned, err := s.resolve(key)
	if err != nil {
		return storage.Object{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.Object{}, storage.NotFound(cleaned)
		}
		return storage.Object{}, fmt.Errorf("stat object %q: %w", cleaned, err)
	}
	if info.IsDir() {
		return storage.Object{}, storage.NotFound(cleaned)
	}
	return storage.Object{Key: cleaned, Size: info.Size(), LastModified: info.ModTime().UTC()}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, cleaned, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object %q: %w", cleaned, err)
	}
	return nil
}

func (s *Store) resolve(key string) (string, string, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), cleaned, nil
}

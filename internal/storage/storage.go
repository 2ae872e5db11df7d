package storage

import (
	"context"
	"time"

	"github.com/datachat/datachat/internal/errs"
)

type Object struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Stat(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}

func NotFound(key string) error {
	return errs.Newf(errs.KindNotFound, "object %q not found", key)
}

func IsNotFound(err error) bool {
	return errs.IsKind(err, errs.KindNotFound)
}

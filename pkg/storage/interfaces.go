package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a key is absent from the bucket.
var ErrObjectNotFound = errors.New("object not found")

type PutOptions struct {
	ContentType  string
	CacheControl string
	Public       bool
}

type ObjectReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

type ObjectWriter interface {
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error
}

type StorageService interface {
	ObjectReader
	ObjectLister
	ObjectWriter
	Bucket() string
}

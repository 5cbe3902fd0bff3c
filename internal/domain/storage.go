package domain

import (
	"context"
	"time"
)

type StoredObject struct {
	Key          string
	LastModified time.Time
	Size         int64
	ETag         string
}

type PutObject struct {
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// KeyError is a single key the store refused to delete.
type KeyError struct {
	Key    string
	Reason string
}

// ObjectStore is the subset of bucket operations the synchronizer and the purger need.
type ObjectStore interface {
	// Exists reports (false, nil) when the key is absent; any other failure is returned.
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, obj PutObject) error
	// WalkPages lists keys under prefix one page at a time, in store order.
	// Returning an error from fn stops the walk and is returned unchanged.
	WalkPages(ctx context.Context, prefix string, pageSize int, fn func(page []StoredObject) error) error
	DeleteBatch(ctx context.Context, keys []string) (deleted []string, failed []KeyError, err error)
}

package domain

import (
	"context"
)

type Fetcher interface {
	Fetch(ctx context.Context, src Source) FetchResult
}

type Cache interface {
	Has(name, digest string) bool
	GetPath(name, digest string) string
	Store(name, digest, src string) (string, error)
	Size() (int64, error)
	Clear() error
}

type Extractor interface {
	Extract(src, dst string) error
}

type State interface {
	Begin(rec *UnpackRecord) error
	Complete(rec *UnpackRecord) error
	Fail(rec *UnpackRecord) error
	Get(archive string) (*UnpackRecord, error)
	List() ([]*UnpackRecord, error)
	Remove(archive string) error
	Close() error
}

type Inspector interface {
	Inspect(path string) (*AppInfo, error)
}

package storage

import (
	"errors"
	"io"
)

var ErrInvalidKey = errors.New("invalid storage key")

// BlobStore holds content documents by key. content.Library reads through
// Get; admins replace documents with Put.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	List() ([]string, error)
}

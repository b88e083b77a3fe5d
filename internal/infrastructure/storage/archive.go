// Package storage archives raw order documents to S3-compatible object storage.
package storage

import (
	"context"
	"path"
	"strconv"
	"strings"
)

// RawArchive keeps a copy of each raw document outside the database
type RawArchive interface {
	// Put writes the document for order id
	Put(ctx context.Context, id int64, document []byte) error
}

// ObjectKey returns the object key of order id under prefix
func ObjectKey(prefix string, id int64) string {
	name := strconv.FormatInt(id, 10) + ".json"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// NoopArchive discards documents; it is used when archiving is disabled
type NoopArchive struct{}

// Put implements RawArchive
func (NoopArchive) Put(context.Context, int64, []byte) error { return nil }

var _ RawArchive = NoopArchive{}

/*
Package store keeps trained bundles under generated ids so that training
and prediction can run apart, on the local filesystem or in Redis.
*/
package store

import (
	"context"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when no bundle is kept under an id.
var ErrNotFound = errors.New("bundle not found")

/*
BundleStore is an interface for objects keeping bundles under string ids.
Create assigns a fresh id and returns it; Store overwrites the bundle under
an existing or chosen id.
*/
type BundleStore interface {
	Create(ctx context.Context, b *forest.Bundle) (string, error)
	Get(ctx context.Context, id string) (*forest.Bundle, error)
	Store(ctx context.Context, id string, b *forest.Bundle) error
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

/*
EncodeDecoder is an interface for objects
that allow encoding bundles into slices of
bytes and decoding them back to bundles.
*/
type EncodeDecoder interface {
	Encode(*forest.Bundle) ([]byte, error)
	Decode([]byte) (*forest.Bundle, error)
}

// Codec encodes bundles with the bio package's BSON codec.
type Codec struct {
	Compression bio.Compression
}

// Encode marshals b compressed with the codec's compression.
func (c Codec) Encode(b *forest.Bundle) ([]byte, error) {
	return bio.MarshalBundle(b, c.Compression)
}

// Decode unmarshals a bundle whatever its compression.
func (c Codec) Decode(data []byte) (*forest.Bundle, error) {
	return bio.UnmarshalBundle(data)
}

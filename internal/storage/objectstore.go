package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the narrow boundary to the page/tile image store. Keys are
// namespaced per document; the PDF-to-image pipeline writes them, this core
// only reads.
type ObjectStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
}

// PageKey is the flat raster for one whole page.
func PageKey(docID uint, page int) string {
	return fmt.Sprintf("docs/%d/pages/%d.jpg", docID, page)
}

// TileKey addresses one deep-zoom tile of a page.
func TileKey(docID uint, page, z, x, y int) string {
	return fmt.Sprintf("docs/%d/tiles/%d/%d/%d_%d.jpg", docID, page, z, x, y)
}

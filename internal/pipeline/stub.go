package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"scheduleingest.dev/worker/internal/domain"
)

// FileBlobStore reads image bytes from a local directory keyed by
// r2_key, treating the key as a relative path. It exists so the Runner
// Loop has a concrete, testable BlobStore without depending on a real
// object-storage SDK the example corpus never carried for this domain.
// Swap in a real R2/S3 client by implementing BlobStore against it.
type FileBlobStore struct {
	Root string
}

// Get reads Root/r2Key.
func (f FileBlobStore) Get(ctx context.Context, r2Key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return os.ReadFile(filepath.Join(f.Root, r2Key))
}

var _ BlobStore = FileBlobStore{}

// NoopOCR returns zero boxes for every image. It is a deterministic,
// total stand-in for a real vision/OCR engine (§6 treats OCR as a pure
// function this repo never implements).
type NoopOCR struct{}

// Recognize implements OCR by returning no boxes.
func (NoopOCR) Recognize(ctx context.Context, imageBytes []byte) ([]Box, error) {
	return nil, nil
}

var _ OCR = NoopOCR{}

// NoopLayoutParser returns no entries for any box set.
type NoopLayoutParser struct{}

// ParseLayout implements LayoutParser by returning no entries.
func (NoopLayoutParser) ParseLayout(ctx context.Context, boxes []Box) ([]domain.RawEntry, error) {
	return nil, nil
}

var _ LayoutParser = NoopLayoutParser{}

// NoopNormalizer returns no shifts for any entry set.
type NoopNormalizer struct{}

// Normalize implements Normalizer by returning no shifts.
func (NoopNormalizer) Normalize(ctx context.Context, entries []domain.RawEntry) ([]domain.CanonicalShift, error) {
	return nil, nil
}

var _ Normalizer = NoopNormalizer{}

// Package pipeline declares the collaborator contracts an OCR/layout/
// normalization implementation must satisfy to plug into the runner
// (spec §6 "Collaborator contracts (pure functions)"). This worker ships
// no OCR engine of its own; each stage is an interface so a concrete
// implementation (an external OCR service client, a geometry-grouping
// layout parser, a domain-specific normalizer) can be wired in by the
// entrypoint without the runner depending on it directly.
package pipeline

import (
	"context"

	"scheduleingest.dev/worker/internal/domain"
)

// Box is one OCR-detected text region, with no filtering or grouping
// applied (§6).
type Box struct {
	Text       string
	X, Y       float64
	W, H       float64
	Confidence float64
}

// OCR turns raw image bytes into unordered text boxes. Treated as
// blocking CPU-bound work (§5): implementations must respect ctx
// cancellation so shutdown can abort mid-recognition. A lost lease does
// not cancel ctx; the runner checks for it between pipeline stages.
type OCR interface {
	Recognize(ctx context.Context, imageBytes []byte) ([]Box, error)
}

// LayoutParser deterministically groups boxes by geometry into entries,
// discarding chrome cards with no time line, and normalizes HH.MM to
// HH:MM (§6).
type LayoutParser interface {
	ParseLayout(ctx context.Context, boxes []Box) ([]domain.RawEntry, error)
}

// Normalizer performs address decomposition, company-noise removal,
// OCR-confusion folding, and fingerprint computation, turning raw
// entries into identity-bearing canonical shifts (§6).
type Normalizer interface {
	Normalize(ctx context.Context, entries []domain.RawEntry) ([]domain.CanonicalShift, error)
}

// BlobStore fetches the raw bytes behind a capture_image's r2_key. Not
// part of §6's collaborator contracts, but the runner needs a seam to
// turn a stored key into image bytes before OCR can run.
type BlobStore interface {
	Get(ctx context.Context, r2Key string) ([]byte, error)
}

// Pipeline bundles the three collaborator stages the runner drives for
// each captured image.
type Pipeline struct {
	OCR        OCR
	Layout     LayoutParser
	Normalizer Normalizer
}

// ProcessImage runs one image through OCR, layout parsing, and
// normalization, returning that image's canonical shifts.
func (p *Pipeline) ProcessImage(ctx context.Context, imageBytes []byte) ([]domain.CanonicalShift, error) {
	boxes, err := p.OCR.Recognize(ctx, imageBytes)
	if err != nil {
		return nil, err
	}
	entries, err := p.Layout.ParseLayout(ctx, boxes)
	if err != nil {
		return nil, err
	}
	return p.Normalizer.Normalize(ctx, entries)
}

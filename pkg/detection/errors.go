package detection

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrArtifactMissing is returned when a trained artifact file does not exist.
	ErrArtifactMissing = errors.New("detection: artifact missing")

	// ErrArtifactMalformed is returned when an artifact cannot be decoded or has the wrong shape.
	ErrArtifactMalformed = errors.New("detection: artifact malformed")

	// ErrMalformedVector is returned when a feature vector cannot be classified.
	ErrMalformedVector = errors.New("detection: malformed feature vector")

	// ErrEmptyRegion is returned when feature extraction is given an empty image.
	ErrEmptyRegion = errors.New("detection: empty region")
)

// ArtifactError wraps a load failure with the offending path.
type ArtifactError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ArtifactError) Error() string {
	return fmt.Sprintf("detection: load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// Package detection scans camera frames for people using a color-feature
// classifier and aggregates the result of each scan into a Snapshot.
package detection

import (
	"fmt"
	"image"
	"time"
)

// Config holds detector configuration
type Config struct {
	ModelPath  string // Path to the exported SVM artifact
	ScalerPath string // Path to the exported feature scaler artifact

	CanonicalSize image.Point // Regions are resized to this before feature extraction
	Window        image.Point // Scan window (X = width, Y = height)
	Step          image.Point // Scan stride in each axis

	DarkThreshold float64       // Skip regions whose mean intensity is below this (0-255)
	ProbThreshold float64       // Minimum person confidence for a hit (0-1, exclusive)
	Interval      time.Duration // Minimum wall-clock time between scan cycles
}

// DefaultConfig returns the production defaults the shipped model was trained with.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/svm_model_hsv.json",
		ScalerPath:    "models/scaler_hsv.json",
		CanonicalSize: image.Pt(100, 100),
		Window:        image.Pt(150, 250),
		Step:          image.Pt(80, 80),
		DarkThreshold: 40,
		ProbThreshold: 0.80,
		Interval:      time.Second,
	}
}

// Validate checks that the geometry and thresholds are usable.
func (c Config) Validate() error {
	if c.CanonicalSize.X <= 0 || c.CanonicalSize.Y <= 0 {
		return fmt.Errorf("detection: canonical size must be positive, got %v", c.CanonicalSize)
	}
	if err := (Grid{Window: c.Window, Step: c.Step}).Validate(); err != nil {
		return err
	}
	if c.ProbThreshold < 0 || c.ProbThreshold >= 1 {
		return fmt.Errorf("detection: probability threshold must be in [0,1), got %v", c.ProbThreshold)
	}
	if c.DarkThreshold < 0 || c.DarkThreshold > 255 {
		return fmt.Errorf("detection: dark threshold must be in [0,255], got %v", c.DarkThreshold)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("detection: interval must be positive, got %v", c.Interval)
	}
	return nil
}

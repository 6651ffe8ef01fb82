package detection

import (
	"fmt"
	"image"
	"iter"

	"gocv.io/x/gocv"
)

// Grid is a fixed-size window strided across a frame.
type Grid struct {
	Window image.Point // X = width, Y = height
	Step   image.Point
}

// Validate checks that the window and step are positive.
func (g Grid) Validate() error {
	if g.Window.X <= 0 || g.Window.Y <= 0 {
		return fmt.Errorf("detection: window must be positive, got %v", g.Window)
	}
	if g.Step.X <= 0 || g.Step.Y <= 0 {
		return fmt.Errorf("detection: step must be positive, got %v", g.Step)
	}
	return nil
}

// positions returns how many window origins fit along one axis.
func positions(size, window, step int) int {
	if size < window {
		return 0
	}
	return (size-window)/step + 1
}

// Count returns how many windows Windows yields for a frame of the given size.
func (g Grid) Count(size image.Point) int {
	return positions(size.X, g.Window.X, g.Step.X) * positions(size.Y, g.Window.Y, g.Step.Y)
}

// Windows yields window rectangles row-major (y outer, x inner) starting at
// the origin. A window never extends past size; one ending exactly on the
// edge is included.
func (g Grid) Windows(size image.Point) iter.Seq[image.Rectangle] {
	return func(yield func(image.Rectangle) bool) {
		if g.Validate() != nil {
			return
		}
		for y := 0; y+g.Window.Y <= size.Y; y += g.Step.Y {
			for x := 0; x+g.Window.X <= size.X; x += g.Step.X {
				if !yield(image.Rect(x, y, x+g.Window.X, y+g.Window.Y)) {
					return
				}
			}
		}
	}
}

// Region is one scan window of a frame. Mat is a view into the frame and is
// only valid until the iteration step that produced it returns.
type Region struct {
	X, Y int
	Rect image.Rectangle
	Mat  gocv.Mat
}

// ScanStats counts what a scan did.
type ScanStats struct {
	Visited int // windows enumerated
	Dark    int // windows rejected by the darkness filter
}

// Scanner enumerates candidate regions of a frame.
type Scanner struct {
	grid          Grid
	darkThreshold float64
}

// NewScanner creates a scanner over grid that skips regions darker than darkThreshold.
func NewScanner(grid Grid, darkThreshold float64) *Scanner {
	return &Scanner{grid: grid, darkThreshold: darkThreshold}
}

// Grid returns the scanner's window geometry.
func (s *Scanner) Grid() Grid {
	return s.grid
}

// Scan returns a fresh, restartable sequence of the frame's bright-enough
// regions. Breaking out of the loop stops the scan. stats may be nil.
func (s *Scanner) Scan(frame gocv.Mat, stats *ScanStats) iter.Seq[Region] {
	return func(yield func(Region) bool) {
		if frame.Empty() {
			return
		}
		size := image.Pt(frame.Cols(), frame.Rows())
		for rect := range s.grid.Windows(size) {
			view := frame.Region(rect)
			if stats != nil {
				stats.Visited++
			}
			if meanIntensity(view) < s.darkThreshold {
				if stats != nil {
					stats.Dark++
				}
				view.Close()
				continue
			}
			ok := yield(Region{X: rect.Min.X, Y: rect.Min.Y, Rect: rect, Mat: view})
			view.Close()
			if !ok {
				return
			}
		}
	}
}

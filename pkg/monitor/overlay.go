package monitor

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-roomwatch/pkg/detection"
	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

var (
	colorGreen  = color.RGBA{G: 255}
	colorOrange = color.RGBA{R: 255, G: 165}
	colorRed    = color.RGBA{R: 255}
	colorWhite  = color.RGBA{R: 255, G: 255, B: 255}
)

// StatusLine returns the headline text and its color for a status.
func StatusLine(st relay.Status) (string, color.RGBA) {
	switch {
	case st.Occupancy == relay.Occupied:
		return "STATUS: OCCUPIED", colorGreen
	case st.Occupancy == relay.Empty && st.Relay == relay.On:
		return fmt.Sprintf("EMPTY - off in %ds", st.RemainingSeconds), colorOrange
	case st.Occupancy == relay.Expired && st.Relay == relay.Off:
		return "POWER OFF (ENERGY SAVING)", colorRed
	case st.Relay == relay.Off:
		return "SYSTEM OFF", colorRed
	default:
		return "POWER ON (MANUAL)", colorOrange
	}
}

// PersonLine returns the confidence line drawn under the status.
func PersonLine(snap detection.Snapshot) string {
	return fmt.Sprintf("Person: %.1f%%", snap.PersonPercent())
}

// Annotate draws the winning region of the last cycle and the status text
// onto img.
func Annotate(img *gocv.Mat, snap detection.Snapshot, st relay.Status) error {
	if snap.HasHit {
		if err := gocv.Rectangle(img, snap.Hit, colorGreen, 2); err != nil {
			return fmt.Errorf("monitor: draw hit: %w", err)
		}
	}

	text, c := StatusLine(st)
	if err := gocv.PutText(img, text, image.Pt(20, 40), gocv.FontHersheySimplex, 0.8, c, 2); err != nil {
		return fmt.Errorf("monitor: draw status: %w", err)
	}
	if err := gocv.PutText(img, PersonLine(snap), image.Pt(20, 80), gocv.FontHersheySimplex, 0.6, colorWhite, 2); err != nil {
		return fmt.Errorf("monitor: draw person line: %w", err)
	}
	return nil
}

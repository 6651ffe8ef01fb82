package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Feature vector layout. The order must match the one the model was trained on:
//
//	[0:3]    mean H, S, V
//	[3:6]    stddev H, S, V
//	[6:38]   hue histogram, 32 bins over [0,180), unit L2 norm
//	[38:70]  saturation histogram, 32 bins over [0,256), unit L2 norm
//	[70:102] value histogram, 32 bins over [0,256), unit L2 norm
const (
	HistBins   = 32
	StatsLen   = 6
	FeatureLen = StatsLen + 3*HistBins

	StatsOffset = 0
	HueOffset   = StatsOffset + StatsLen
	SatOffset   = HueOffset + HistBins
	ValOffset   = SatOffset + HistBins
)

// OpenCV 8-bit HSV ranges: hue is halved to fit a byte.
var histRanges = [3][2]float64{
	{0, 180},
	{0, 256},
	{0, 256},
}

// FeatureVector is the descriptor of one region.
type FeatureVector [FeatureLen]float64

// Stats returns the six color moments.
func (v *FeatureVector) Stats() []float64 {
	return v[StatsOffset : StatsOffset+StatsLen]
}

// Histogram returns the normalized histogram of HSV channel ch (0, 1 or 2).
func (v *FeatureVector) Histogram(ch int) []float64 {
	off := HueOffset + ch*HistBins
	return v[off : off+HistBins]
}

// Extractor turns image regions into feature vectors.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	size image.Point
}

// NewExtractor creates an extractor that resizes regions to size first.
func NewExtractor(size image.Point) *Extractor {
	return &Extractor{size: size}
}

// Extract computes the feature vector of a BGR region.
func (e *Extractor) Extract(region gocv.Mat) (FeatureVector, error) {
	var v FeatureVector

	if region.Empty() {
		return v, ErrEmptyRegion
	}
	if ch := region.Channels(); ch != 3 {
		return v, fmt.Errorf("detection: expected 3-channel BGR region, got %d channels", ch)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(region, &resized, e.size, 0, 0, gocv.InterpolationLinear); err != nil {
		return v, fmt.Errorf("detection: resize: %w", err)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(resized, &hsv, gocv.ColorBGRToHSV); err != nil {
		return v, fmt.Errorf("detection: convert to hsv: %w", err)
	}

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	if err := gocv.MeanStdDev(hsv, &mean, &stddev); err != nil {
		return v, fmt.Errorf("detection: mean/stddev: %w", err)
	}

	for c := 0; c < 3; c++ {
		v[StatsOffset+c] = mean.GetDoubleAt(c, 0)
		v[StatsOffset+3+c] = stddev.GetDoubleAt(c, 0)
	}

	mask := gocv.NewMat()
	defer mask.Close()

	for c, rng := range histRanges {
		if err := histogram(hsv, mask, c, rng[:], v[HueOffset+c*HistBins:HueOffset+(c+1)*HistBins]); err != nil {
			return FeatureVector{}, err
		}
	}

	return v, nil
}

// histogram writes the L2-normalized histogram of channel ch into out.
func histogram(hsv, mask gocv.Mat, ch int, rng []float64, out []float64) error {
	hist := gocv.NewMat()
	defer hist.Close()

	if err := gocv.CalcHist([]gocv.Mat{hsv}, []int{ch}, mask, &hist, []int{len(out)}, rng, false); err != nil {
		return fmt.Errorf("detection: histogram of channel %d: %w", ch, err)
	}
	if err := gocv.Normalize(hist, &hist, 1, 0, gocv.NormL2); err != nil {
		return fmt.Errorf("detection: normalize channel %d: %w", ch, err)
	}
	for i := range out {
		out[i] = float64(hist.GetFloatAt(i, 0))
	}
	return nil
}

// meanIntensity is the mean over all pixels and all channels.
func meanIntensity(m gocv.Mat) float64 {
	s := m.Mean()
	switch m.Channels() {
	case 1:
		return s.Val1
	case 3:
		return (s.Val1 + s.Val2 + s.Val3) / 3
	default:
		return (s.Val1 + s.Val2 + s.Val3 + s.Val4) / 4
	}
}

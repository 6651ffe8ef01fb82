package detection

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func l2(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

func TestFeatureLayout(t *testing.T) {
	if FeatureLen != 102 {
		t.Fatalf("FeatureLen = %d, want 102", FeatureLen)
	}
	if ValOffset+HistBins != FeatureLen {
		t.Errorf("histograms do not end at FeatureLen: %d", ValOffset+HistBins)
	}
}

func TestExtract_HistogramsUnitNorm(t *testing.T) {
	e := NewExtractor(image.Pt(100, 100))

	tests := []struct {
		name string
		make func() gocv.Mat
	}{
		{"random noise", func() gocv.Mat {
			m := gocv.NewMatWithSize(250, 150, gocv.MatTypeCV8UC3)
			gocv.RandU(&m, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))
			return m
		}},
		{"black", func() gocv.Mat {
			return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 250, 150, gocv.MatTypeCV8UC3)
		}},
		{"white", func() gocv.Mat {
			return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 250, 150, gocv.MatTypeCV8UC3)
		}},
		{"small region upscaled", func() gocv.Mat {
			m := gocv.NewMatWithSize(20, 30, gocv.MatTypeCV8UC3)
			gocv.RandU(&m, gocv.NewScalar(40, 40, 40, 0), gocv.NewScalar(200, 220, 240, 0))
			return m
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := tc.make()
			defer m.Close()

			v, err := e.Extract(m)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(v) != FeatureLen {
				t.Fatalf("vector length %d, want %d", len(v), FeatureLen)
			}
			for ch := 0; ch < 3; ch++ {
				if n := l2(v.Histogram(ch)); math.Abs(n-1) > 1e-5 {
					t.Errorf("channel %d histogram L2 norm = %.6f, want 1", ch, n)
				}
			}
		})
	}
}

func TestExtract_SolidColor(t *testing.T) {
	// Pure red in BGR is H=0, S=255, V=255 in OpenCV's 8-bit HSV.
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 120, 80, gocv.MatTypeCV8UC3)
	defer m.Close()

	v, err := NewExtractor(image.Pt(100, 100)).Extract(m)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	stats := v.Stats()
	want := []float64{0, 255, 255, 0, 0, 0}
	for i := range want {
		if math.Abs(stats[i]-want[i]) > 1e-6 {
			t.Errorf("stats[%d] = %v, want %v", i, stats[i], want[i])
		}
	}

	if h := v.Histogram(0); math.Abs(h[0]-1) > 1e-6 {
		t.Errorf("hue mass should be in bin 0, got %v", h[0])
	}
	if s := v.Histogram(1); math.Abs(s[HistBins-1]-1) > 1e-6 {
		t.Errorf("saturation mass should be in the last bin, got %v", s[HistBins-1])
	}
	if val := v.Histogram(2); math.Abs(val[HistBins-1]-1) > 1e-6 {
		t.Errorf("value mass should be in the last bin, got %v", val[HistBins-1])
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewExtractor(image.Pt(100, 100))

	a := gocv.NewMatWithSize(250, 150, gocv.MatTypeCV8UC3)
	defer a.Close()
	gocv.RandU(&a, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))

	b := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 90, 200, 0), 250, 150, gocv.MatTypeCV8UC3)
	defer b.Close()

	first, err := e.Extract(a)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract(b); err != nil {
		t.Fatal(err)
	}
	again, err := e.Extract(a)
	if err != nil {
		t.Fatal(err)
	}

	if first != again {
		t.Error("same pixels produced different vectors")
	}
}

func TestExtract_Errors(t *testing.T) {
	e := NewExtractor(image.Pt(100, 100))

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := e.Extract(empty); err != ErrEmptyRegion {
		t.Errorf("empty region: got %v, want ErrEmptyRegion", err)
	}

	// 64-bit float pixels pass the channel check but OpenCV cannot convert
	// them to HSV; the failure must surface instead of a zero vector.
	doubles := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0.2, 0.4, 0.6, 0), 120, 80, gocv.MatTypeCV64FC3)
	defer doubles.Close()
	if v, err := e.Extract(doubles); err == nil {
		t.Errorf("64-bit float region should fail, got vector %v", v.Stats())
	}

	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 0, 0, 0), 10, 10, gocv.MatTypeCV8UC1)
	defer gray.Close()
	if _, err := e.Extract(gray); err == nil {
		t.Error("single-channel region should be rejected")
	}
}

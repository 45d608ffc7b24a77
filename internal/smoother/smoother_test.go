package smoother

import (
	"math"
	"testing"
)

func TestResampleZeroStrengthIsLinear(t *testing.T) {
	times := []float64{0, 1, 2}
	values := []float64{0, 10, 0}

	out := Resample(times, values, []float64{0, 0.5, 1, 1.5, 2}, 0)
	want := []float64{0, 5, 10, 5, 0}

	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("out[%d] = %.4f, want %.4f", i, out[i], want[i])
		}
	}
}

func TestResamplePassesThroughEndpoints(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	values := []float64{100, 140, 120, 160}

	for _, strength := range []float64{0, 0.25, 0.5, 1} {
		out := Resample(times, values, []float64{0, 3}, strength)
		if math.Abs(out[0]-100) > 35 || math.Abs(out[1]-160) > 35 {
			t.Errorf("strength %.2f: endpoints drifted to %.1f, %.1f", strength, out[0], out[1])
		}
	}
}

func TestResampleSinglePoint(t *testing.T) {
	out := Resample([]float64{1}, []float64{42}, []float64{0, 1, 2}, 0.5)
	for i, v := range out {
		if v != 42 {
			t.Errorf("out[%d] = %.1f, want constant 42", i, v)
		}
	}
}

func TestResampleOutOfSpanHolds(t *testing.T) {
	times := []float64{1, 2}
	values := []float64{5, 9}

	out := Resample(times, values, []float64{0, 3}, 0.8)
	if math.Abs(out[0]-5) > 1e-9 {
		t.Errorf("before span: got %.3f, want held 5", out[0])
	}
	if math.Abs(out[1]-9) > 1e-9 {
		t.Errorf("after span: got %.3f, want held 9", out[1])
	}
}

// Smoothness bound: with strength >= 0.5 the dense output must not jump
// between adjacent frames, and its second difference must stay bounded
// within a segment.
func TestResampleSmoothnessBound(t *testing.T) {
	// Noisy face positions sampled every 133ms over 4 seconds
	var times, values []float64
	for i := 0; i <= 30; i++ {
		times = append(times, float64(i)*0.133)
		jitter := 40.0
		if i%2 == 0 {
			jitter = -40.0
		}
		values = append(values, 600+float64(i)*8+jitter)
	}

	outTimes := Uniform(times[0], times[len(times)-1], 1.0/30.0)
	out := Resample(times, values, outTimes, 0.5)

	const maxStep = 25.0   // px per frame
	const maxAccel = 12.0  // px per frame^2

	for i := 1; i < len(out); i++ {
		step := math.Abs(out[i] - out[i-1])
		if step > maxStep {
			t.Fatalf("frame %d: displacement %.2f exceeds %.2f", i, step, maxStep)
		}
		if i >= 2 {
			accel := math.Abs((out[i] - out[i-1]) - (out[i-1] - out[i-2]))
			if accel > maxAccel {
				t.Fatalf("frame %d: second difference %.2f exceeds %.2f", i, accel, maxAccel)
			}
		}
	}
}

func TestResampleHighStrengthSmootherThanLow(t *testing.T) {
	var times, values []float64
	for i := 0; i <= 20; i++ {
		times = append(times, float64(i)*0.2)
		v := 500.0
		if i%2 == 0 {
			v = 560.0
		}
		values = append(values, v)
	}

	outTimes := Uniform(0, 4, 1.0/30.0)
	rough := Resample(times, values, outTimes, 0.1)
	smooth := Resample(times, values, outTimes, 0.9)

	if variation(smooth) >= variation(rough) {
		t.Errorf("total variation: strength 0.9 (%.1f) should be below strength 0.1 (%.1f)",
			variation(smooth), variation(rough))
	}
}

func variation(values []float64) float64 {
	total := 0.0
	for i := 1; i < len(values); i++ {
		total += math.Abs(values[i] - values[i-1])
	}
	return total
}

func TestUniform(t *testing.T) {
	got := Uniform(0, 1, 0.25)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d points, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("point %d: %.3f want %.3f", i, got[i], want[i])
		}
	}

	// Non-divisible span still ends exactly at end
	got = Uniform(0, 1.1, 0.25)
	if got[len(got)-1] != 1.1 {
		t.Errorf("last point %.3f, want 1.1", got[len(got)-1])
	}

	// Monotonicity
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("timestamps not strictly increasing: %v", got)
		}
	}
}

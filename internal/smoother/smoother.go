package smoother

import "math"

// Package smoother turns sparse per-tick values into a dense, C1-continuous
// signal. Each crop rectangle field is smoothed independently as a plain
// float series; the package knows nothing about rectangles or modes, so a
// mode boundary is simply the end of one series and the start of another.

// Resample evaluates a smoothed curve through (times, values) at outTimes.
//
// strength in [0,1] controls the character of the curve: 0 is straight
// linear interpolation, 1 is a fully smoothed Catmull-Rom spline over
// pre-filtered control values (slowest response). Intermediate strengths
// blend the two. times must be strictly increasing and len(times) must
// equal len(values).
func Resample(times, values, outTimes []float64, strength float64) []float64 {
	if len(times) != len(values) {
		panic("smoother: times and values length mismatch")
	}

	out := make([]float64, len(outTimes))
	if len(times) == 0 {
		return out
	}
	if len(times) == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}

	strength = math.Max(0, math.Min(1, strength))

	smoothed := values
	if strength > 0.3 {
		// Above moderate strength the control points themselves are
		// low-pass filtered before the spline fit, trading
		// responsiveness for stability.
		smoothed = gaussianFilter(values, strength*2)
	}

	tangents := catmullRomTangents(times, smoothed)

	// The linear fallback interpolates the filtered control values too:
	// strength decides the curve character, the filter handles noise.
	for i, t := range outTimes {
		seg := findSegment(times, t)
		linear := lerpAt(times, smoothed, seg, t)
		curved := hermiteAt(times, smoothed, tangents, seg, t)
		out[i] = (1-strength)*linear + strength*curved
	}
	return out
}

// Uniform returns evenly spaced timestamps covering [start, end] at the
// given step, always including both endpoints.
func Uniform(start, end, step float64) []float64 {
	if end < start {
		end = start
	}
	if step <= 0 {
		return []float64{start, end}
	}

	n := int(math.Floor((end-start)/step + 1e-9))
	out := make([]float64, 0, n+2)
	for i := 0; i <= n; i++ {
		out = append(out, start+float64(i)*step)
	}
	if last := out[len(out)-1]; end-last > step*1e-6 {
		out = append(out, end)
	}
	return out
}

// findSegment returns i such that times[i] <= t < times[i+1], clamped to the
// valid range so out-of-span queries hold the boundary segment.
func findSegment(times []float64, t float64) int {
	if t <= times[0] {
		return 0
	}
	last := len(times) - 2
	if t >= times[len(times)-1] {
		return last
	}

	lo, hi := 0, last
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if times[mid] <= t {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func lerpAt(times, values []float64, seg int, t float64) float64 {
	t0, t1 := times[seg], times[seg+1]
	if t <= t0 {
		return values[seg]
	}
	if t >= t1 {
		return values[seg+1]
	}
	u := (t - t0) / (t1 - t0)
	return values[seg] + (values[seg+1]-values[seg])*u
}

// catmullRomTangents computes per-point slopes from neighbor chords,
// with one-sided chords at the ends
func catmullRomTangents(times, values []float64) []float64 {
	n := len(times)
	m := make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case i == 0:
			m[i] = chord(times, values, 0, 1)
		case i == n-1:
			m[i] = chord(times, values, n-2, n-1)
		default:
			m[i] = (values[i+1] - values[i-1]) / (times[i+1] - times[i-1])
		}
	}
	return m
}

func chord(times, values []float64, i, j int) float64 {
	dt := times[j] - times[i]
	if dt == 0 {
		return 0
	}
	return (values[j] - values[i]) / dt
}

// hermiteAt evaluates the cubic Hermite segment seg at time t. Out-of-span
// times clamp to the boundary value, keeping held frames flat.
func hermiteAt(times, values, tangents []float64, seg int, t float64) float64 {
	t0, t1 := times[seg], times[seg+1]
	if t <= t0 {
		return values[seg]
	}
	if t >= t1 {
		return values[seg+1]
	}

	h := t1 - t0
	u := (t - t0) / h
	u2 := u * u
	u3 := u2 * u

	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2

	return h00*values[seg] + h10*h*tangents[seg] + h01*values[seg+1] + h11*h*tangents[seg+1]
}

// gaussianFilter applies a discrete Gaussian low-pass over the value array.
// sigma is measured in sample counts; edges reflect.
func gaussianFilter(values []float64, sigma float64) []float64 {
	if sigma <= 0 || len(values) < 3 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}

	radius := int(math.Ceil(sigma * 3))
	if radius < 1 {
		radius = 1
	}

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	n := len(values)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		acc := 0.0
		for k := -radius; k <= radius; k++ {
			acc += kernel[k+radius] * values[reflectIndex(i+k, n)]
		}
		out[i] = acc
	}
	return out
}

func reflectIndex(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

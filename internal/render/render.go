package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/reelframe/internal/composer"
)

// Package render turns a composition descriptor into FFmpeg filtergraph
// strings. It never executes anything; the caller owns the ffmpeg
// invocation, input ordering and encoding settings.

// Expressions longer than this get unwieldy and slow to evaluate, so
// keyframes are downsampled before expression generation.
const maxControlPoints = 30

// StackFilter combines the secondary input (stream 1) with the tracked
// half (stream 0) into the final canvas.
const StackFilter = "[1:v][0:v]vstack[stacked]"

// Job is the filtergraph for one timeline segment. The caller trims the
// source to [Start, End) and applies Graph; Complex jobs need
// -filter_complex instead of -vf.
type Job struct {
	Start   float64
	End     float64
	Graph   string
	Complex bool
}

// Plan produces one render job per descriptor segment.
func Plan(d *composer.Descriptor, fps float64) ([]Job, error) {
	if d == nil || len(d.Segments) == 0 {
		return nil, fmt.Errorf("render: empty descriptor")
	}
	if fps <= 0 {
		return nil, fmt.Errorf("render: invalid fps %g", fps)
	}

	jobs := make([]Job, 0, len(d.Segments))
	for _, seg := range d.Segments {
		var job Job
		switch len(seg.Boxes) {
		case 1:
			job = Job{
				Start: seg.Start,
				End:   seg.End,
				Graph: boxChain(seg.Boxes[0], seg.Start, fps),
			}
		case 2:
			job = Job{
				Start:   seg.Start,
				End:     seg.End,
				Graph:   dualChain(seg.Boxes[0], seg.Boxes[1], seg.Start, fps),
				Complex: true,
			}
		default:
			return nil, fmt.Errorf("render: segment %q has %d boxes", seg.Mode, len(seg.Boxes))
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SecondarySource returns the lavfi input generating placeholder content
// for a stacked layout, or "" when real content is referenced and the
// caller should add it as a file input instead.
func SecondarySource(s *composer.Secondary, duration, fps float64) string {
	if s == nil || !s.Placeholder {
		return ""
	}
	if s.Kind == "video" {
		return fmt.Sprintf("testsrc2=size=%dx%d:rate=%g:duration=%.3f",
			s.Dest.W, s.Dest.H, fps, duration)
	}
	color := "0x" + strings.TrimPrefix(s.Color, "#")
	return fmt.Sprintf("color=c=%s:s=%dx%d:d=%.3f:r=%g",
		color, s.Dest.W, s.Dest.H, duration, fps)
}

// CaptionFilter returns the drawtext filter placing caption text inside
// its canvas region.
func CaptionFilter(c *composer.Caption) string {
	if c == nil || c.Text == "" {
		return ""
	}
	text := strings.ReplaceAll(c.Text, `'`, `\'`)
	return fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=36:box=1:boxcolor=black@0.5:boxborderw=10:x=(w-text_w)/2:y=%d+((%d-th)/2)",
		text, c.Dest.Y, c.Dest.H)
}

// boxChain crops one animated region and scales it to its destination
func boxChain(box composer.BoxMapping, segStart, fps float64) string {
	return fmt.Sprintf("%s,scale=%d:%d", cropFilter(box, segStart, fps), box.Dest.W, box.Dest.H)
}

// dualChain splits the input, crops both regions and stacks them
func dualChain(top, bottom composer.BoxMapping, segStart, fps float64) string {
	return fmt.Sprintf(
		"[0:v]split=2[a][b];"+
			"[a]%s[a_crop];[a_crop]scale=%d:%d[a_scaled];"+
			"[b]%s[b_crop];[b_crop]scale=%d:%d[b_scaled];"+
			"[a_scaled][b_scaled]vstack",
		cropFilter(top, segStart, fps), top.Dest.W, top.Dest.H,
		cropFilter(bottom, segStart, fps), bottom.Dest.W, bottom.Dest.H)
}

func cropFilter(box composer.BoxMapping, segStart, fps float64) string {
	w := sampleField(box.Keyframes, segStart, fps, func(k composer.BoxKeyframe) float64 { return k.W })
	h := sampleField(box.Keyframes, segStart, fps, func(k composer.BoxKeyframe) float64 { return k.H })
	x := sampleField(box.Keyframes, segStart, fps, func(k composer.BoxKeyframe) float64 { return k.X })
	y := sampleField(box.Keyframes, segStart, fps, func(k composer.BoxKeyframe) float64 { return k.Y })

	return fmt.Sprintf("crop=w='%s':h='%s':x='%s':y='%s'",
		buildExpr(w), buildExpr(h), buildExpr(x), buildExpr(y))
}

type controlPoint struct {
	frame int
	value int
}

// sampleField extracts one rect field as frame-indexed control points,
// downsampled to the expression cap. Frame numbers are relative to the
// segment start since each job renders a trimmed input.
func sampleField(kfs []composer.BoxKeyframe, segStart, fps float64, field func(composer.BoxKeyframe) float64) []controlPoint {
	if len(kfs) == 0 {
		return []controlPoint{{frame: 0, value: 0}}
	}

	stride := 1
	if len(kfs) > maxControlPoints {
		stride = (len(kfs) + maxControlPoints - 1) / maxControlPoints
	}

	var pts []controlPoint
	for i := 0; i < len(kfs); i += stride {
		pts = append(pts, controlPoint{
			frame: int(math.Round((kfs[i].Time - segStart) * fps)),
			value: int(math.Round(field(kfs[i]))),
		})
	}

	// The last keyframe pins the segment end
	last := controlPoint{
		frame: int(math.Round((kfs[len(kfs)-1].Time - segStart) * fps)),
		value: int(math.Round(field(kfs[len(kfs)-1]))),
	}
	if pts[len(pts)-1].frame != last.frame {
		pts = append(pts, last)
	}
	return pts
}

// buildExpr creates a piecewise linear frame-number expression:
// if(lt(n,f1),v0+(n-f0)*(v1-v0)/(f1-f0),...) with a trailing constant.
func buildExpr(pts []controlPoint) string {
	if len(pts) == 1 {
		return fmt.Sprintf("%d", pts[0].value)
	}

	var b strings.Builder
	open := 0
	for i := 0; i < len(pts)-1; i++ {
		a, c := pts[i], pts[i+1]
		if c.frame <= a.frame {
			continue
		}
		fmt.Fprintf(&b, "if(lt(n,%d),%d+(n-%d)*(%d-%d)/%d,",
			c.frame, a.value, a.frame, c.value, a.value, c.frame-a.frame)
		open++
	}
	fmt.Fprintf(&b, "%d", pts[len(pts)-1].value)
	b.WriteString(strings.Repeat(")", open))
	return b.String()
}

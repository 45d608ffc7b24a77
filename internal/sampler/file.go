package sampler

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SampleFile is the on-disk form of a precomputed detection pass: clip
// metadata plus one entry per sampling tick.
type SampleFile struct {
	Version string       `yaml:"version"`
	Video   VideoInfo    `yaml:"video"`
	Samples []FaceSample `yaml:"samples"`
}

// FileSampler serves samples recorded by an external detector run. It
// stands in for the live face detector when reprocessing a clip or in
// tests; the engine cannot tell the difference.
type FileSampler struct {
	Path string
}

// NewFileSampler creates a sampler backed by a sample file
func NewFileSampler(path string) *FileSampler {
	return &FileSampler{Path: path}
}

// Sample loads, filters and returns the recorded samples. The tick interval
// is already baked into the recording and is ignored here.
func (f *FileSampler) Sample(ctx context.Context, video VideoInfo, tickIntervalFrames int) ([]FaceSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := ReadSampleFile(f.Path)
	if err != nil {
		return nil, err
	}

	w, h := float64(video.Width), float64(video.Height)
	if w == 0 || h == 0 {
		w, h = float64(file.Video.Width), float64(file.Video.Height)
	}
	return Normalize(file.Samples, w, h), nil
}

// ReadSampleFile parses a sample file from disk
func ReadSampleFile(path string) (*SampleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}

	var file SampleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse samples %s: %w", path, err)
	}
	return &file, nil
}

// WriteSampleFile writes a sample file to disk
func WriteSampleFile(file *SampleFile, path string) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

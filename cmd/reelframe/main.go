package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivlev/reelframe/internal/composer"
	"github.com/ivlev/reelframe/internal/config"
	"github.com/ivlev/reelframe/internal/engine"
	"github.com/ivlev/reelframe/internal/logging"
	"github.com/ivlev/reelframe/internal/render"
	"github.com/ivlev/reelframe/internal/sampler"
	"github.com/ivlev/reelframe/internal/system"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "reelframe [samples.yaml ...]",
		Short:        "Compute vertical reframing descriptors from face-detection samples",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().String("config", "", "Path to YAML config file")
	root.Flags().String("out", "output", "Output directory for descriptors")
	root.Flags().String("layout", "", "Output layout: vertical_9x16, stacked_photo, stacked_video")
	root.Flags().Float64("strength", -1, "Smoothing strength in [0,1]")
	root.Flags().String("caption", "", "Caption text overlay")
	root.Flags().String("secondary", "", "Secondary content path for stacked layouts")
	root.Flags().Int("workers", 0, "Clip workers (0 = auto)")
	root.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	root.Flags().String("log-format", "", "Log format: console, json")
	root.Flags().Bool("print-plan", false, "Print the ffmpeg filtergraph plan for each clip")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	system.InitResourceLimits(log)

	// No arguments: pick the newest recorded detection pass
	if len(args) == 0 {
		latest, err := system.FindLatestSamples(filepath.Join("input", "samples"))
		if err != nil {
			return fmt.Errorf("no sample files given: %w (record one or pass paths)", err)
		}
		log.Info("using latest sample file", "path", latest)
		args = []string{latest}
	}

	clips, srcSampler, err := loadClips(args)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, srcSampler, log)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	printPlan, _ := cmd.Flags().GetBool("print-plan")

	results, err := eng.ReframeBatch(context.Background(), clips)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			log.Error("clip skipped", "clip", res.Video.Path, "error", res.Err)
			continue
		}
		path := descriptorPath(outDir, res.Video.Path)
		if err := composer.WriteDescriptor(res.Descriptor, path); err != nil {
			return fmt.Errorf("write descriptor for %s: %w", res.Video.Path, err)
		}
		log.Info("descriptor written", "clip", res.Video.Path, "path", path)

		if printPlan {
			if err := printRenderPlan(cmd, res.Descriptor, cfg.FPS); err != nil {
				return err
			}
		}
	}

	if failed == len(results) {
		return fmt.Errorf("all %d clips failed", failed)
	}
	if failed > 0 {
		log.Warn("some clips skipped", "failed", failed, "total", len(results))
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override the file
	if cmd.Flags().Changed("layout") {
		cfg.Layout, _ = cmd.Flags().GetString("layout")
	}
	if cmd.Flags().Changed("strength") {
		cfg.SmoothingStrength, _ = cmd.Flags().GetFloat64("strength")
	}
	if cmd.Flags().Changed("caption") {
		cfg.CaptionText, _ = cmd.Flags().GetString("caption")
	}
	if cmd.Flags().Changed("secondary") {
		cfg.SecondaryContent, _ = cmd.Flags().GetString("secondary")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadClips reads each sample file's clip metadata and builds a sampler
// routing every clip back to its recording.
func loadClips(paths []string) ([]sampler.VideoInfo, sampler.Sampler, error) {
	clips := make([]sampler.VideoInfo, 0, len(paths))
	routes := make(map[string]string, len(paths))

	for _, path := range paths {
		file, err := sampler.ReadSampleFile(path)
		if err != nil {
			return nil, nil, err
		}
		if file.Video.Path == "" {
			file.Video.Path = path
		}
		clips = append(clips, file.Video)
		routes[file.Video.Path] = path
	}

	return clips, &routedSampler{routes: routes}, nil
}

// routedSampler serves each clip from its own sample file
type routedSampler struct {
	routes map[string]string
}

func (r *routedSampler) Sample(ctx context.Context, video sampler.VideoInfo, tickIntervalFrames int) ([]sampler.FaceSample, error) {
	path, ok := r.routes[video.Path]
	if !ok {
		return nil, fmt.Errorf("no sample file recorded for %s", video.Path)
	}
	return sampler.NewFileSampler(path).Sample(ctx, video, tickIntervalFrames)
}

func descriptorPath(dir, clipPath string) string {
	base := filepath.Base(clipPath)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("%s_reframe_%s.yaml", base, timestamp))
}

func printRenderPlan(cmd *cobra.Command, d *composer.Descriptor, fps float64) error {
	jobs, err := render.Plan(d, fps)
	if err != nil {
		return err
	}

	cmd.Printf("# %s (%s)\n", d.Source.Path, d.Layout)
	if src := render.SecondarySource(d.Second, d.Source.Duration, fps); src != "" {
		cmd.Printf("secondary: -f lavfi -i %q\n", src)
	}
	for _, job := range jobs {
		flag := "-vf"
		if job.Complex {
			flag = "-filter_complex"
		}
		cmd.Printf("[%.2fs - %.2fs] %s %q\n", job.Start, job.End, flag, job.Graph)
	}
	if caption := render.CaptionFilter(d.Caption); caption != "" {
		cmd.Printf("caption: -vf %q\n", caption)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/scenecast/internal/config"
	"github.com/ivlev/scenecast/internal/engine"
	"github.com/ivlev/scenecast/internal/logging"
	"github.com/ivlev/scenecast/internal/scene"
	"github.com/ivlev/scenecast/internal/source"
	"github.com/ivlev/scenecast/internal/system"
)

// BuildVersion is set at link time.
var BuildVersion = "dev"

type options struct {
	manifest      string
	from          string
	configPath    string
	output        string
	channel       string
	preset        string
	width         int
	height        int
	fps           int
	pace          float64
	qr            string
	planOut       string
	writeManifest string
	stats         bool
	verbose       bool
	noProgress    bool
}

func main() {
	opts := parseFlags()
	logging.Init(opts.verbose)
	system.InitResourceLimits(log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "[-] %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.manifest, "manifest", "", "Scene manifest (YAML); a directory picks its newest manifest (default: newest in input/)")
	flag.StringVar(&o.from, "from", "", "Build scenes from a PDF or an image directory instead of a manifest")
	flag.StringVar(&o.configPath, "config", "", "Config file (default: ./scenecast.yaml or ~/.scenecast/config.yaml)")
	flag.StringVar(&o.output, "output", "", "Output video (default: generated in output/)")
	flag.StringVar(&o.channel, "channel", "part1", "Export channel name")
	flag.StringVar(&o.preset, "preset", "", "Frame preset: 16:9, 9:16, 4:5, 1:1")
	flag.IntVar(&o.width, "width", 0, "Frame width (overrides config)")
	flag.IntVar(&o.height, "height", 0, "Frame height (overrides config)")
	flag.IntVar(&o.fps, "fps", 0, "Frames per second (overrides config)")
	flag.Float64Var(&o.pace, "pace", -1, "Playback pace: 1 real time, 0 as fast as possible")
	flag.StringVar(&o.qr, "qr", "", "URL for a QR watermark")
	flag.StringVar(&o.planOut, "plan-out", "", "Write the computed plan to this YAML file")
	flag.StringVar(&o.writeManifest, "write-manifest", "", "With -from, save the generated scene list as a manifest")
	flag.BoolVar(&o.stats, "stats", false, "Print a performance report and append it to benchmark.log")
	flag.BoolVar(&o.verbose, "verbose", false, "Debug logging")
	flag.BoolVar(&o.noProgress, "no-progress", false, "Disable the progress bar")
	flag.Parse()
	return o
}

func run(ctx context.Context, o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applyOverrides(cfg, o); err != nil {
		return err
	}

	for _, d := range []string{"input", "output"} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}

	scenes, input, err := loadScenes(ctx, cfg, o)
	if err != nil {
		return err
	}
	fmt.Printf("[*] %d scenes from %s, %dx%d @ %d fps\n", len(scenes), input, cfg.Width, cfg.Height, cfg.FPS)

	if enc := engine.Codecs(cfg)[0]; enc != "libx264" {
		fmt.Printf("[*] Encoder: %s\n", enc)
	}

	var obs engine.Observer
	if !o.noProgress {
		obs = newProgressObserver()
	}

	ch := engine.NewChannel(o.channel, cfg, engine.WithLogger(log.Logger))
	res := ch.Start(ctx, scenes, obs)
	if !res.Success {
		log.Debug().Err(res.Err).Msg("render did not complete")
		return errors.New(res.Message())
	}

	output := o.output
	if output == "" {
		output = defaultOutput(input, o.channel)
	}
	path, err := engine.Download(res.Video, output)
	if err != nil {
		return fmt.Errorf("write video: %w", err)
	}
	res.Release()
	fmt.Printf("[+++] Done: %s (%.1fs, %s)\n", path, res.DurationSeconds, res.Codec)

	if o.planOut != "" {
		if err := engine.WritePlan(res.Plan, o.planOut); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
		fmt.Printf("[*] Plan: %s\n", o.planOut)
	}

	if cfg.ShowStats {
		fmt.Print(res.Stats.Report(BuildVersion))
		if err := res.Stats.AppendBenchmark("benchmark.log", BuildVersion, input, res.SceneCount); err != nil {
			log.Warn().Err(err).Msg("benchmark log not written")
		}
	}
	return nil
}

func applyOverrides(cfg *config.Config, o options) error {
	if err := cfg.ApplyPreset(o.preset); err != nil {
		return err
	}
	if o.width > 0 {
		cfg.Width = o.width
	}
	if o.height > 0 {
		cfg.Height = o.height
	}
	if o.fps > 0 {
		cfg.FPS = o.fps
	}
	if o.pace >= 0 {
		cfg.Pace = o.pace
	}
	if o.qr != "" {
		cfg.Overlay.QRURL = o.qr
	}
	if o.stats {
		cfg.ShowStats = true
	}
	cfg.BuildVersion = BuildVersion
	return cfg.Validate()
}

// loadScenes resolves the scene list and returns it with the input it came from.
func loadScenes(ctx context.Context, cfg *config.Config, o options) ([]scene.Scene, string, error) {
	if o.from != "" {
		scenes, err := scenesFromSource(o.from, cfg.GridSeconds)
		if err != nil {
			return nil, "", err
		}
		if o.writeManifest != "" {
			if err := scene.WriteManifest(manifestFor(scenes), o.writeManifest); err != nil {
				return nil, "", fmt.Errorf("write manifest: %w", err)
			}
			fmt.Printf("[*] Manifest: %s\n", o.writeManifest)
		}
		return scenes, o.from, nil
	}

	path := o.manifest
	if path == "" {
		path = "input"
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		latest, err := system.FindLatestManifest(path)
		if err != nil {
			return nil, "", fmt.Errorf("%w. Put a scene manifest into %s/", err, path)
		}
		path = latest
		fmt.Printf("[*] Manifest: %s\n", path)
	}

	probe := func(p string) (float64, error) {
		return system.GetAudioDuration(ctx, cfg.Video.FFprobePath, p)
	}
	scenes, err := scene.LoadManifest(path, cfg.GridSeconds, probe)
	if err != nil {
		return nil, "", err
	}
	return scenes, path, nil
}

// scenesFromSource makes one silent scene per PDF page or image.
func scenesFromSource(path string, gridSeconds float64) ([]scene.Scene, error) {
	var refs []string
	if source.IsPDF(path) {
		doc, err := source.OpenPDF(path)
		if err != nil {
			return nil, err
		}
		refs = doc.Refs()
		doc.Close()
	} else {
		list, err := source.ListImages(path)
		if err != nil {
			return nil, err
		}
		refs = list
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no pages or images in %s", path)
	}

	scenes := make([]scene.Scene, len(refs))
	for i, ref := range refs {
		scenes[i] = scene.Scene{
			ID:              fmt.Sprintf("scene_%d", i+1),
			Sequence:        i + 1,
			DurationSeconds: gridSeconds,
			ImageRef:        ref,
		}
	}
	return scenes, nil
}

func manifestFor(scenes []scene.Scene) *scene.Manifest {
	m := &scene.Manifest{Version: "1.0", Scenes: make([]scene.ManifestScene, len(scenes))}
	for i, s := range scenes {
		ref := s.ImageRef
		if abs, err := filepath.Abs(ref); err == nil {
			ref = abs
		}
		m.Scenes[i] = scene.ManifestScene{ID: s.ID, Image: ref, Duration: s.DurationSeconds}
	}
	return m
}

func defaultOutput(input, channel string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s_%s.mp4", name, channel, timestamp))
}

// newProgressObserver draws a bar once the frame count is known.
func newProgressObserver() engine.Observer {
	var bar *progressbar.ProgressBar
	return engine.ObserverFunc(func(p engine.Progress) {
		switch p.Status {
		case engine.StatusPreparing:
			fmt.Println("[*] Preparing scenes...")
		case engine.StatusRendering:
			if bar == nil && p.TotalFrames > 0 {
				bar = progressbar.NewOptions(p.TotalFrames,
					progressbar.OptionSetDescription("Rendering"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("frames"),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetRenderBlankState(true),
				)
			}
			if bar != nil {
				_ = bar.Set(p.CurrentFrame)
			}
		case engine.StatusComplete:
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(os.Stderr)
			}
		case engine.StatusError:
			if bar != nil {
				fmt.Fprintln(os.Stderr)
			}
		}
	})
}

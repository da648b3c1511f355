package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/config"
	"github.com/mkraev/annoplay/internal/engine"
	"github.com/mkraev/annoplay/internal/render"
	"github.com/mkraev/annoplay/internal/system"
	"github.com/mkraev/annoplay/internal/video"
)

var buildVersion = "dev"

func main() {
	system.InitResourceLimits()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "annoplay",
	})

	configPtr := flag.String("config", "", "Path to a TOML config file (flags override it)")
	inputPtr := flag.String("input", "", "Path or URL of the document (default: newest PDF in input/pdf/)")
	scriptPtr := flag.String("script", "", "Path to the annotation script YAML")
	outputPtr := flag.String("output", "", "Output video path (default: generated under output/)")
	audioPtr := flag.String("audio", "", "Audio track to mux (empty: none)")
	widthPtr := flag.Int("width", 0, "Output width (0: derived from the page)")
	heightPtr := flag.Int("height", 0, "Output height (0: derived from the page)")
	fpsPtr := flag.Int("fps", 30, "Frames per second")
	scalePtr := flag.Float64("scale", 2.0, "Page rasterization zoom factor")
	densityPtr := flag.Float64("density", 1.0, "Drawing-layer pixel density")
	workersPtr := flag.Int("workers", runtime.NumCPU(), "Prerender worker threads")
	qualityPtr := flag.Int("quality", 23, "Encoder quality (x264 CRF / nvenc CQ / videotoolbox bitrate*100k)")
	encoderPtr := flag.String("encoder", "", "Video encoder (empty: auto-detect)")
	outroPtr := flag.String("outro-url", "", "Append an outro card with a QR code to this URL")
	framePtr := flag.Float64("frame", -1, "Dump a single composited frame at this time to PNG instead of exporting")
	statsPtr := flag.Bool("stats", false, "Print a performance report")
	flag.Parse()

	cfg := &config.Config{}
	if *configPtr != "" {
		if err := config.Load(*configPtr, cfg); err != nil {
			logger.Fatal("config", "err", err)
		}
	}
	applyFlags(cfg, map[string]func(){
		"input":     func() { cfg.InputPath = *inputPtr },
		"script":    func() { cfg.ScriptPath = *scriptPtr },
		"output":    func() { cfg.OutputVideo = *outputPtr },
		"audio":     func() { cfg.AudioPath = *audioPtr },
		"width":     func() { cfg.Width = *widthPtr },
		"height":    func() { cfg.Height = *heightPtr },
		"fps":       func() { cfg.FPS = *fpsPtr },
		"scale":     func() { cfg.Scale = *scalePtr },
		"density":   func() { cfg.Density = *densityPtr },
		"workers":   func() { cfg.Workers = *workersPtr },
		"quality":   func() { cfg.Quality = *qualityPtr },
		"encoder":   func() { cfg.VideoEncoder = *encoderPtr },
		"outro-url": func() { cfg.OutroURL = *outroPtr },
		"stats":     func() { cfg.ShowStats = *statsPtr },
	})
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	cfg.ApplyDefaults()
	cfg.BuildVersion = buildVersion

	if cfg.InputPath == "" {
		latest, err := system.FindLatestPDF(filepath.Join("input", "pdf"))
		if err != nil {
			logger.Fatal("no input document", "err", err)
		}
		cfg.InputPath = latest
		logger.Info("using newest document", "path", latest)
	}
	if cfg.ScriptPath == "" {
		logger.Fatal("a -script file is required")
	}

	script, err := annotation.ReadScript(cfg.ScriptPath)
	if err != nil {
		logger.Fatal("script", "err", err)
	}
	if script.Audio != "" && cfg.AudioPath == "" {
		cfg.AudioPath = script.Audio
	}
	if script.Document != "" && *inputPtr == "" && cfg.InputPath == "" {
		cfg.InputPath = script.Document
	}

	renderer := render.New(render.Options{
		Density:   cfg.Density,
		FrameRate: cfg.FPS,
		Logger:    logger,
	})

	if *framePtr >= 0 {
		if err := dumpFrame(renderer, script, cfg, *framePtr); err != nil {
			logger.Fatal("frame dump", "err", err)
		}
		return
	}

	if cfg.OutputVideo == "" {
		os.MkdirAll("output", 0755)
		base := strings.TrimSuffix(filepath.Base(cfg.InputPath), filepath.Ext(cfg.InputPath))
		cfg.OutputVideo = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", base, time.Now().Format("2006-01-02_15-04-05")))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	project := engine.NewExportProject(cfg, script, renderer, &video.FFmpegEncoder{}, logger)
	if err := project.Run(ctx); err != nil {
		logger.Fatal("export", "err", err)
	}
}

// applyFlags reapplies values for flags the user actually passed, so they
// win over the config file.
func applyFlags(cfg *config.Config, setters map[string]func()) {
	flag.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set()
		}
	})
}

// dumpFrame composites the overlay state at time t and writes it to a PNG
// next to the input, a quick way to eyeball a script.
func dumpFrame(renderer *render.Renderer, script *annotation.Script, cfg *config.Config, t float64) error {
	res := renderer.LoadDocument(cfg.InputPath)
	if !res.Success {
		return fmt.Errorf("load document: %s", res.Error)
	}
	defer renderer.Destroy()

	if err := renderer.SetAnnotations(script.Annotations); err != nil {
		return err
	}
	if pr := renderer.SetScale(cfg.Scale); !pr.Success {
		return fmt.Errorf("set scale: %s", pr.Error)
	}
	if pr := renderer.SetPage(script.PageAt(t)); !pr.Success {
		return fmt.Errorf("set page: %s", pr.Error)
	}
	renderer.SetTime(t)

	img := renderer.Frame(nil)
	if img == nil {
		return fmt.Errorf("nothing rendered")
	}

	out := fmt.Sprintf("frame_%.2fs.png", t)
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	fmt.Printf("[+] Frame written: %s\n", out)
	return nil
}

package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"time"

	"github.com/charmbracelet/log"
	qrcode "github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/config"
	"github.com/mkraev/annoplay/internal/render"
	"github.com/mkraev/annoplay/internal/system"
	"github.com/mkraev/annoplay/internal/video"
)

// ExportProject walks an annotation script's timeline at a fixed frame
// rate, feeds the clock, composites page + overlays per frame, and streams
// the frames into the encoder.
type ExportProject struct {
	Config   *config.Config
	Script   *annotation.Script
	Renderer *render.Renderer
	Encoder  video.Encoder
	logger   *log.Logger
}

// NewExportProject wires an export run.
func NewExportProject(cfg *config.Config, script *annotation.Script, r *render.Renderer, enc video.Encoder, logger *log.Logger) *ExportProject {
	if logger == nil {
		logger = log.Default()
	}
	return &ExportProject{Config: cfg, Script: script, Renderer: r, Encoder: enc, logger: logger}
}

// Run executes the export end to end.
func (p *ExportProject) Run(ctx context.Context) error {
	startTime := time.Now()
	cfg := p.Config

	res := p.Renderer.LoadDocument(cfg.InputPath)
	if !res.Success {
		return fmt.Errorf("load document: %s", res.Error)
	}
	defer p.Renderer.Destroy()

	if err := p.Renderer.SetAnnotations(p.Script.Annotations); err != nil {
		return err
	}
	pageRes := p.Renderer.SetScale(cfg.Scale)
	if !pageRes.Success {
		return fmt.Errorf("set scale: %s", pageRes.Error)
	}

	duration := p.Script.TotalDuration()
	if cfg.AudioPath != "" {
		audioDur, err := system.GetAudioDuration(cfg.AudioPath)
		if err != nil {
			return fmt.Errorf("probe audio: %w", err)
		}
		if audioDur > duration {
			duration = audioDur
		}
	}
	if duration <= 0 {
		return fmt.Errorf("script has no duration and no timed annotations")
	}

	vp := pageRes.Viewport
	outW, outH := cfg.Width, cfg.Height
	if outW <= 0 || outH <= 0 {
		outW, outH = evenDims(int(vp.Width), int(vp.Height))
	}

	encoderName := cfg.VideoEncoder
	if encoderName == "" {
		encoderName = video.BestEncoder()
	}

	// Rasterize every page the script visits before streaming starts, so
	// page turns never stall the frame pipeline.
	pages := []int{1}
	for _, cue := range p.Script.Pages {
		pages = append(pages, cue.Page)
	}
	if err := p.Renderer.Prerender(pages, cfg.Workers); err != nil {
		return err
	}

	p.logger.Info("export start",
		"pages", res.PageCount,
		"duration", fmt.Sprintf("%.2fs", duration),
		"size", fmt.Sprintf("%dx%d@%d", outW, outH, cfg.FPS),
		"encoder", encoderName)

	stream, err := p.Encoder.Start(ctx, video.StreamOptions{
		OutputPath:  cfg.OutputVideo,
		Width:       outW,
		Height:      outH,
		FPS:         cfg.FPS,
		AudioPath:   cfg.AudioPath,
		EncoderName: encoderName,
		Quality:     cfg.Quality,
	})
	if err != nil {
		return err
	}

	outRect := image.Rect(0, 0, outW, outH)
	totalFrames := int(duration * float64(cfg.FPS))
	frames := make(chan *image.RGBA, cfg.FPS/2+1)

	g, ctx := errgroup.WithContext(ctx)

	// Producer: timeline walk + compositing.
	g.Go(func() error {
		defer close(frames)
		currentPage := 0
		var pageFrame *image.RGBA
		for f := 0; f < totalFrames; f++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := float64(f) / float64(cfg.FPS)

			page := p.Script.PageAt(t)
			if page != currentPage {
				pr := p.Renderer.SetPage(page)
				if pr.Cancelled {
					continue
				}
				if !pr.Success {
					return fmt.Errorf("page %d: %s", page, pr.Error)
				}
				currentPage = page
			}

			p.Renderer.SetTime(t)
			pageFrame = p.Renderer.Frame(pageFrame)
			if pageFrame == nil {
				return fmt.Errorf("no frame at t=%.3f", t)
			}

			out := system.GetImage(outRect)
			letterbox(out, pageFrame)
			select {
			case frames <- out:
			case <-ctx.Done():
				system.PutImage(out)
				return ctx.Err()
			}
		}

		if cfg.OutroURL != "" {
			if err := p.queueOutro(ctx, frames, outRect); err != nil {
				return err
			}
		}
		return nil
	})

	// Consumer: encoding.
	written := 0
	g.Go(func() error {
		for img := range frames {
			err := stream.WriteFrame(img)
			system.PutImage(img)
			if err != nil {
				return err
			}
			written++
			if written%(cfg.FPS*5) == 0 {
				p.logger.Info("encoding", "frame", written, "of", totalFrames)
			}
		}
		return nil
	})

	runErr := g.Wait()
	closeErr := stream.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}

	if cfg.ShowStats {
		p.report(startTime, written)
	}
	p.logger.Info("export done", "output", cfg.OutputVideo, "frames", written)
	return nil
}

// queueOutro appends a closing card with a QR code pointing at the source
// document.
func (p *ExportProject) queueOutro(ctx context.Context, frames chan<- *image.RGBA, outRect image.Rectangle) error {
	card, err := outroCard(outRect, p.Config.OutroURL)
	if err != nil {
		return fmt.Errorf("outro card: %w", err)
	}

	n := int(p.Config.OutroSeconds * float64(p.Config.FPS))
	for i := 0; i < n; i++ {
		out := system.GetImage(outRect)
		draw.Draw(out, outRect, card, image.Point{}, draw.Src)
		select {
		case frames <- out:
		case <-ctx.Done():
			system.PutImage(out)
			return ctx.Err()
		}
	}
	return nil
}

// outroCard renders a dark card with a centered QR code for the URL.
func outroCard(rect image.Rectangle, url string) (*image.RGBA, error) {
	side := rect.Dy() / 2
	if rect.Dx() < rect.Dy() {
		side = rect.Dx() / 2
	}
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	qrImg := qr.Image(side)

	card := image.NewRGBA(rect)
	draw.Draw(card, rect, image.NewUniform(color.RGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xff}), image.Point{}, draw.Src)
	qb := qrImg.Bounds()
	offset := image.Pt(rect.Dx()/2-qb.Dx()/2, rect.Dy()/2-qb.Dy()/2)
	draw.Draw(card, qb.Add(offset), qrImg, qb.Min, draw.Src)
	return card, nil
}

// letterbox scales src into dst preserving aspect ratio, padding with
// black.
func letterbox(dst *image.RGBA, src *image.RGBA) {
	db := dst.Bounds()
	sb := src.Bounds()
	if db.Dx() == sb.Dx() && db.Dy() == sb.Dy() {
		draw.Draw(dst, db, src, sb.Min, draw.Src)
		return
	}

	draw.Draw(dst, db, image.NewUniform(color.Black), image.Point{}, draw.Src)
	target := FitRect(sb.Dx(), sb.Dy(), db.Dx(), db.Dy())
	xdraw.ApproxBiLinear.Scale(dst, target, src, sb, xdraw.Src, nil)
}

// FitRect returns the largest rectangle of srcW:srcH aspect centered
// inside dstW×dstH.
func FitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rect(0, 0, dstW, dstH)
	}
	scale := float64(dstW) / float64(srcW)
	if s := float64(dstH) / float64(srcH); s < scale {
		scale = s
	}
	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// evenDims rounds dimensions up to even values; yuv420p requires them.
func evenDims(w, h int) (int, int) {
	if w%2 != 0 {
		w++
	}
	if h%2 != 0 {
		h++
	}
	return w, h
}

func (p *ExportProject) report(start time.Time, frames int) {
	total := time.Since(start)
	stats := system.Snapshot()
	fps := float64(frames) / total.Seconds()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Frames: %d (%.2f fps effective)\n"+
			"CPU: %d cores @ %.1f%%\n"+
			"Memory: %d MB RSS / %d MB total\n"+
			"----------------------------\n",
		p.Config.BuildVersion, total.Seconds(), frames, fps,
		stats.CPUCount, stats.CPUPercent, stats.ProcRSSMB, stats.TotalMemMB,
	)
	fmt.Print(report)

	logEntry := fmt.Sprintf("[%s] Build: %s | Output: %s | Frames: %d | Total: %.2fs | FPS: %.2f | RSS: %dMB\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion, p.Config.OutputVideo, frames, total.Seconds(), fps, stats.ProcRSSMB,
	)
	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		p.logger.Warn("could not write benchmark.log", "err", err)
	}
}

// Package render exposes the single public surface consumers drive: a
// facade composing the layer orchestrator, the timeline clock, and the
// document source.
package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/clock"
	"github.com/mkraev/annoplay/internal/geom"
	"github.com/mkraev/annoplay/internal/layer"
	"github.com/mkraev/annoplay/internal/source"
)

// LoadResult reports the outcome of LoadDocument.
type LoadResult struct {
	Success   bool
	PageCount int
	Error     string
}

// PageResult reports the outcome of SetPage/SetScale. Cancelled marks a
// render superseded by a newer request; that is a recoverable outcome, not
// an error.
type PageResult struct {
	Success   bool
	Cancelled bool
	Viewport  geom.Viewport
	Error     string
}

// State is a snapshot of the facade's current configuration.
type State struct {
	Page        int
	Scale       float64
	Annotations []annotation.Annotation
	PageCount   int
	Time        float64
	Viewport    geom.Viewport
	DocumentURL string
}

// Options tunes the facade.
type Options struct {
	Density   float64
	FrameRate int
	Logger    *log.Logger
}

// Renderer is the facade. The only cross-component wiring in the system
// happens at construction: the orchestrator's UpdateTimeline is subscribed
// to the clock, so every SetTime propagates to all layers.
type Renderer struct {
	mu          sync.Mutex
	opts        Options
	logger      *log.Logger
	src         source.Source
	cleanup     func()
	surface     *layer.Surface
	orch        *layer.Orchestrator
	clock       *clock.Clock
	unsub       func()
	page        int
	scale       float64
	viewport    geom.Viewport
	pageImg     *image.RGBA
	annotations []annotation.Annotation
	docURL      string
	cache       map[int]*image.RGBA
	cacheScale  float64
	gen         uint64
	cancel      context.CancelFunc
	destroyed   bool
}

// New creates an empty facade; call LoadDocument before anything else that
// needs pages.
func New(opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	r := &Renderer{
		opts:    opts,
		logger:  logger,
		surface: layer.NewSurface(),
		clock:   clock.New(opts.FrameRate, logger),
		scale:   1,
	}
	r.unsub = r.clock.Subscribe(func(t float64) {
		r.mu.Lock()
		orch := r.orch
		r.mu.Unlock()
		if orch != nil {
			if err := orch.UpdateTimeline(t); err != nil {
				r.logger.Error("timeline update failed", "err", err)
			}
		}
	})
	return r
}

// LoadDocument opens a document from a local path or http(s) URL, renders
// its first page, and constructs the layer stack against that viewport.
// Failures travel in the result, not as errors.
func (r *Renderer) LoadDocument(url string) LoadResult {
	path, cleanup, err := resolveDocument(url)
	if err != nil {
		return LoadResult{Error: err.Error()}
	}

	src, err := source.Open(path)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return LoadResult{Error: err.Error()}
	}

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		src.Close()
		if cleanup != nil {
			cleanup()
		}
		return LoadResult{Error: "renderer is destroyed"}
	}
	if r.src != nil {
		r.src.Close()
	}
	if r.cleanup != nil {
		r.cleanup()
	}
	r.src = src
	r.cleanup = cleanup
	r.docURL = url
	r.page = 1
	r.scale = 1
	r.cache = nil
	r.mu.Unlock()

	if res := r.SetPage(1); !res.Success {
		return LoadResult{Error: res.Error}
	}
	return LoadResult{Success: true, PageCount: src.PageCount()}
}

// SetPage renders the given 1-indexed page at the current scale. Any
// in-flight page render is cancelled first; a render superseded mid-flight
// discards its result instead of applying it.
func (r *Renderer) SetPage(page int) PageResult {
	return r.renderPage(page, -1)
}

// SetScale re-renders the current page at the new zoom factor.
func (r *Renderer) SetScale(scale float64) PageResult {
	if scale <= 0 {
		return PageResult{Error: fmt.Sprintf("invalid scale %v", scale)}
	}
	return r.renderPage(-1, scale)
}

func (r *Renderer) renderPage(page int, scale float64) PageResult {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return PageResult{Error: "renderer is destroyed"}
	}
	if r.src == nil {
		r.mu.Unlock()
		return PageResult{Error: "no document loaded"}
	}
	if page < 0 {
		page = r.page
	}
	if scale < 0 {
		scale = r.scale
	}
	if page < 1 || page > r.src.PageCount() {
		r.mu.Unlock()
		return PageResult{Error: fmt.Sprintf("page %d out of range 1..%d", page, r.src.PageCount())}
	}

	// Supersede any in-flight render.
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.gen++
	gen := r.gen
	src := r.src
	var cached image.Image
	if scale == r.cacheScale {
		if img, ok := r.cache[page]; ok {
			cached = img
		}
	}
	r.mu.Unlock()

	img, err := cached, error(nil)
	if img == nil {
		img, err = renderWithContext(ctx, src, page-1, scale)
	}

	r.mu.Lock()
	if r.destroyed || gen != r.gen {
		r.mu.Unlock()
		return PageResult{Cancelled: true, Error: "render superseded"}
	}
	if err != nil {
		r.mu.Unlock()
		if ctx.Err() != nil {
			return PageResult{Cancelled: true, Error: "render cancelled"}
		}
		return PageResult{Error: err.Error()}
	}

	rgba := toRGBA(img)
	vp := geom.Viewport{
		Width:  float64(rgba.Bounds().Dx()),
		Height: float64(rgba.Bounds().Dy()),
		Scale:  scale,
	}
	r.page = page
	r.scale = scale
	r.viewport = vp
	r.pageImg = rgba
	anns := r.annotations
	orch := r.orch
	r.mu.Unlock()

	if orch == nil {
		orch, err = layer.NewOrchestrator(r.surface, vp, layer.Options{
			Density:   r.opts.Density,
			FrameRate: r.opts.FrameRate,
		})
		if err != nil {
			return PageResult{Error: err.Error()}
		}
		r.mu.Lock()
		if r.orch != nil {
			// Lost the race to a concurrent render; keep the first stack.
			existing := r.orch
			r.mu.Unlock()
			orch.Destroy()
			orch = existing
			if err := orch.SetViewport(vp); err != nil {
				return PageResult{Error: err.Error()}
			}
		} else {
			r.orch = orch
			r.mu.Unlock()
		}
	} else if err := orch.SetViewport(vp); err != nil {
		return PageResult{Error: err.Error()}
	}

	if err := orch.SetAnnotations(anns, page); err != nil {
		return PageResult{Error: err.Error()}
	}
	if err := orch.UpdateTimeline(r.clock.Time()); err != nil {
		return PageResult{Error: err.Error()}
	}
	return PageResult{Success: true, Viewport: vp}
}

// Prerender rasterizes the given pages concurrently at the current scale
// and caches the results, so page turns during playback or export do not
// stall on MuPDF. A later SetScale invalidates the cache.
func (r *Renderer) Prerender(pages []int, workers int) error {
	r.mu.Lock()
	if r.destroyed || r.src == nil {
		r.mu.Unlock()
		return fmt.Errorf("no document loaded")
	}
	src := r.src
	scale := r.scale
	pageCount := src.PageCount()
	r.mu.Unlock()

	if workers <= 0 {
		workers = 1
	}
	seen := make(map[int]bool)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, page := range pages {
		if page < 1 || page > pageCount || seen[page] {
			continue
		}
		seen[page] = true
		g.Go(func() error {
			img, err := src.RenderPage(page-1, scale)
			if err != nil {
				return fmt.Errorf("prerender page %d: %w", page, err)
			}
			rgba := toRGBA(img)
			r.mu.Lock()
			if !r.destroyed && r.scale == scale {
				if r.cache == nil || r.cacheScale != scale {
					r.cache = make(map[int]*image.RGBA)
					r.cacheScale = scale
				}
				r.cache[page] = rgba
			}
			r.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// SetAnnotations stores the full annotation list and forwards the current
// page's slice to the orchestrator.
func (r *Renderer) SetAnnotations(all []annotation.Annotation) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return fmt.Errorf("renderer is destroyed")
	}
	r.annotations = make([]annotation.Annotation, len(all))
	copy(r.annotations, all)
	orch := r.orch
	page := r.page
	r.mu.Unlock()

	if orch == nil {
		return nil
	}
	return orch.SetAnnotations(all, page)
}

// SetTime forwards a timeline position to the clock; subscribers (the
// orchestrator, hence every layer) are notified synchronously.
func (r *Renderer) SetTime(t float64) {
	r.clock.SetTime(t)
}

// Clock exposes the timeline clock for continuous-sync drivers.
func (r *Renderer) Clock() *clock.Clock {
	return r.clock
}

// State returns a snapshot of the facade.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	anns := make([]annotation.Annotation, len(r.annotations))
	copy(anns, r.annotations)
	pageCount := 0
	if r.src != nil {
		pageCount = r.src.PageCount()
	}
	return State{
		Page:        r.page,
		Scale:       r.scale,
		Annotations: anns,
		PageCount:   pageCount,
		Time:        r.clock.Time(),
		Viewport:    r.viewport,
		DocumentURL: r.docURL,
	}
}

// Frame composites the current page raster and all overlay layers into a
// fresh RGBA image sized to the viewport. dst may be passed in to reuse a
// buffer; nil allocates.
func (r *Renderer) Frame(dst *image.RGBA) *image.RGBA {
	r.mu.Lock()
	pageImg := r.pageImg
	vp := r.viewport
	r.mu.Unlock()

	w, h := int(vp.Width), int(vp.Height)
	if w < 1 || h < 1 {
		return nil
	}
	if dst == nil || dst.Bounds().Dx() != w || dst.Bounds().Dy() != h {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	if pageImg != nil {
		draw.Draw(dst, dst.Bounds(), pageImg, pageImg.Bounds().Min, draw.Src)
	}
	r.surface.Composite(dst)
	return dst
}

// Destroy tears the whole stack down: pending renders are cancelled, the
// clock and layers are destroyed, the document is closed. Idempotent.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	if r.cancel != nil {
		r.cancel()
	}
	src := r.src
	cleanup := r.cleanup
	orch := r.orch
	r.src = nil
	r.cleanup = nil
	r.orch = nil
	r.pageImg = nil
	r.annotations = nil
	r.cache = nil
	r.mu.Unlock()

	if r.unsub != nil {
		r.unsub()
	}
	r.clock.Destroy()
	if orch != nil {
		orch.Destroy()
	}
	if src != nil {
		src.Close()
	}
	if cleanup != nil {
		cleanup()
	}
}

// renderWithContext rasterizes a page on a helper goroutine so a newer
// request can abandon the wait. The stale result is dropped, never applied.
func renderWithContext(ctx context.Context, src source.Source, index int, scale float64) (image.Image, error) {
	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := src.RenderPage(index, scale)
		ch <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.img, res.err
	}
}

// resolveDocument maps a document reference to a local path, downloading
// http(s) URLs to a temp file.
func resolveDocument(url string) (path string, cleanup func(), err error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return url, nil, nil
	}

	resp, err := http.Get(url)
	if err != nil {
		return "", nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fetch document: %s", resp.Status)
	}

	f, err := os.CreateTemp("", "annoplay_*"+filepath.Ext(url))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	f.Close()
	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}

// toRGBA converts any image to RGBA with a zero origin, copying only when
// needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

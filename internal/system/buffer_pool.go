package system

import (
	"image"
	"sync"
)

// ImagePool recycles *image.RGBA frame buffers by size to keep per-frame
// allocations off the garbage collector during export.
type ImagePool struct {
	mu    sync.Mutex
	pools map[[2]int]*sync.Pool
}

// NewImagePool creates an empty pool.
func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[[2]int]*sync.Pool)}
}

var framePool = NewImagePool()

// GetImage returns a zero-origin *image.RGBA with the bounds' dimensions
// from the shared frame pool, allocating when the pool is empty.
func GetImage(rect image.Rectangle) *image.RGBA {
	return framePool.Get(rect.Dx(), rect.Dy())
}

// PutImage returns a buffer to the shared frame pool for reuse. The caller
// must not touch the buffer afterwards.
func PutImage(img *image.RGBA) {
	framePool.Put(img)
}

func (p *ImagePool) Get(w, h int) *image.RGBA {
	p.mu.Lock()
	pool, ok := p.pools[[2]int{w, h}]
	if !ok {
		pool = &sync.Pool{
			New: func() any {
				return image.NewRGBA(image.Rect(0, 0, w, h))
			},
		}
		p.pools[[2]int{w, h}] = pool
	}
	p.mu.Unlock()
	return pool.Get().(*image.RGBA)
}

func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	b := img.Bounds()
	p.mu.Lock()
	pool, ok := p.pools[[2]int{b.Dx(), b.Dy()}]
	p.mu.Unlock()
	if ok {
		pool.Put(img)
	}
}

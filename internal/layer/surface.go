package layer

import (
	"image"
	"image/draw"
	"sort"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Surface is the attachment point layers render into. Each layer attaches
// one Node; Composite paints the attached nodes in z-order over whatever is
// already in the destination (typically the rasterized page).
type Surface struct {
	mu    sync.Mutex
	nodes []*Node
}

// NewSurface creates an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Attach creates a node with the given z-order and layout size in pixels
// and attaches it to the surface. Higher z paints later (on top).
func (s *Surface) Attach(z, width, height int) *Node {
	n := &Node{z: z}
	n.resize(width, height, width, height)

	s.mu.Lock()
	s.nodes = append(s.nodes, n)
	sort.SliceStable(s.nodes, func(i, j int) bool { return s.nodes[i].z < s.nodes[j].z })
	s.mu.Unlock()
	return n
}

// Detach removes a node from the surface and releases its buffer.
// Detaching an already-detached node is a no-op.
func (s *Surface) Detach(n *Node) {
	if n == nil {
		return
	}
	s.mu.Lock()
	for i, cand := range s.nodes {
		if cand == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	n.mu.Lock()
	n.img = nil
	n.mu.Unlock()
}

// Composite paints every attached node over dst in z-order. Nodes whose
// buffer size differs from their layout size (density-scaled canvases) are
// downsampled to layout size.
func (s *Surface) Composite(dst *image.RGBA) {
	s.mu.Lock()
	nodes := make([]*Node, len(s.nodes))
	copy(nodes, s.nodes)
	s.mu.Unlock()

	for _, n := range nodes {
		n.compositeOver(dst)
	}
}

// Node is one layer's pixel buffer on the surface. The buffer may be larger
// than the layout size when the owning layer renders at a pixel density
// above 1; compositing scales it back down.
type Node struct {
	mu      sync.Mutex
	z       int
	img     *image.RGBA
	layoutW int
	layoutH int
}

// Resize replaces the node's buffer. Existing pixels are discarded.
func (n *Node) Resize(bufW, bufH, layoutW, layoutH int) {
	n.mu.Lock()
	n.resize(bufW, bufH, layoutW, layoutH)
	n.mu.Unlock()
}

func (n *Node) resize(bufW, bufH, layoutW, layoutH int) {
	if bufW < 1 {
		bufW = 1
	}
	if bufH < 1 {
		bufH = 1
	}
	n.img = image.NewRGBA(image.Rect(0, 0, bufW, bufH))
	n.layoutW = layoutW
	n.layoutH = layoutH
}

// Paint runs fn against the node's buffer under the node lock. The buffer
// must not be retained past the call.
func (n *Node) Paint(fn func(*image.RGBA)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.img != nil {
		fn(n.img)
	}
}

// Clear zeroes the node's buffer.
func (n *Node) Clear() {
	n.Paint(func(img *image.RGBA) {
		clearRGBA(img)
	})
}

func (n *Node) compositeOver(dst *image.RGBA) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.img == nil {
		return
	}

	src := n.img
	b := src.Bounds()
	if b.Dx() == n.layoutW && b.Dy() == n.layoutH {
		draw.Draw(dst, image.Rect(0, 0, n.layoutW, n.layoutH), src, b.Min, draw.Over)
		return
	}
	// Density-scaled buffer: scale down to layout size while blending.
	xdraw.ApproxBiLinear.Scale(dst, image.Rect(0, 0, n.layoutW, n.layoutH), src, b, xdraw.Over, nil)
}

func clearRGBA(img *image.RGBA) {
	pix := img.Pix
	for i := range pix {
		pix[i] = 0
	}
}

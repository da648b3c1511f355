package source

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Source is the document-rendering collaborator: it decodes a paginated
// document and rasterizes single pages. Page indexes are zero-based here;
// the renderer facade exposes 1-indexed pages.
type Source interface {
	PageCount() int
	// PageDimensions returns the page size in points (1/72 inch).
	PageDimensions(index int) (width, height float64, err error)
	// RenderPage rasterizes a page at the given zoom factor; 1.0 maps one
	// point to one pixel.
	RenderPage(index int, scale float64) (image.Image, error)
	Close() error
}

// FitzSource renders PDF/EPUB/XPS documents through MuPDF.
type FitzSource struct {
	doc  *fitz.Document
	path string
}

// NewFitzSource opens a document at path.
func NewFitzSource(path string) (*FitzSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", path, err)
	}
	return &FitzSource{doc: doc, path: path}, nil
}

func (f *FitzSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzSource) PageDimensions(index int) (float64, float64, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage opens a private handle per call so concurrent rasterization
// does not contend on the shared document.
func (f *FitzSource) RenderPage(index int, scale float64) (image.Image, error) {
	if scale <= 0 {
		scale = 1
	}
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, 72*scale)
}

func (f *FitzSource) Close() error {
	return f.doc.Close()
}

// Open picks a source implementation from the path: directories and image
// files become an ImageSource, everything else goes through MuPDF.
func Open(path string) (Source, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") || isDir(path) {
		return NewImageSource(path)
	}
	return NewFitzSource(path)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/nfnt/resize"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// ErrUnsupportedDocument is returned for content that cannot be previewed
var ErrUnsupportedDocument = fmt.Errorf("unsupported document type")

// ThumbnailRenderer renders the first page of PDFs, or the image itself,
// into a bounded JPEG preview
type ThumbnailRenderer struct {
	maxWidth  uint
	maxHeight uint
	quality   int
}

// NewThumbnailRenderer creates a renderer bounded by size pixels on each side
func NewThumbnailRenderer(size uint, quality int) *ThumbnailRenderer {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &ThumbnailRenderer{
		maxWidth:  size,
		maxHeight: size,
		quality:   quality,
	}
}

// Render produces a JPEG thumbnail
func (r *ThumbnailRenderer) Render(file *entity.AttachmentFile) ([]byte, error) {
	if file == nil || len(file.Content) == 0 {
		return nil, fmt.Errorf("empty attachment")
	}

	var (
		img image.Image
		err error
	)
	switch {
	case file.IsPDF():
		img, err = firstPage(file.Content)
	case strings.HasPrefix(file.MimeType, "image/"):
		img, _, err = image.Decode(bytes.NewReader(file.Content))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, file.MimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", file.FileName, err)
	}

	thumb := resize.Thumbnail(r.maxWidth, r.maxHeight, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func firstPage(content []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	return doc.Image(0)
}

var _ port.ThumbnailRenderer = (*ThumbnailRenderer)(nil)

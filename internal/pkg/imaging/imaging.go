package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Contributed images must match these dimensions exactly; thumbnails are
// derived at the fixed smaller size.
const (
	RequiredWidth  = 540
	RequiredHeight = 405
	ThumbWidth     = 180
	ThumbHeight    = 135
)

var (
	ErrUnsupportedType = errors.New("unsupported image content type")
	ErrUndecodable     = errors.New("image data could not be decoded")
	ErrWrongDimensions = fmt.Errorf("image must be exactly %dx%d pixels", RequiredWidth, RequiredHeight)
)

// Processed is the result of validating and normalizing an upload. Hashes are
// computed over decoded pixel data, so re-encoded uploads with identical
// pixels dedup to the same file.
type Processed struct {
	Hash      string
	Data      []byte
	ThumbHash string
	ThumbData []byte
}

// Process decodes raw upload bytes, enforces the accepted format and exact
// dimensions, and produces the content hash, normalized PNG bytes, and a
// thumbnail with its own hash.
func Process(data []byte, contentType string) (*Processed, error) {
	var (
		src image.Image
		err error
	)
	switch contentType {
	case "image/png":
		src, err = png.Decode(bytes.NewReader(data))
	case "image/jpeg":
		src, err = jpeg.Decode(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedType
	}
	if err != nil {
		return nil, ErrUndecodable
	}

	bounds := src.Bounds()
	if bounds.Dx() != RequiredWidth || bounds.Dy() != RequiredHeight {
		return nil, ErrWrongDimensions
	}

	full := toRGBA(src)
	fullPNG, err := encodePNG(full)
	if err != nil {
		return nil, err
	}

	thumb := image.NewRGBA(image.Rect(0, 0, ThumbWidth, ThumbHeight))
	xdraw.CatmullRom.Scale(thumb, thumb.Bounds(), full, full.Bounds(), xdraw.Src, nil)
	thumbPNG, err := encodePNG(thumb)
	if err != nil {
		return nil, err
	}

	return &Processed{
		Hash:      hashPixels(full),
		Data:      fullPNG,
		ThumbHash: hashPixels(thumb),
		ThumbData: thumbPNG,
	}, nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

func hashPixels(img *image.RGBA) string {
	sum := sha256.Sum256(img.Pix)
	return hex.EncodeToString(sum[:])
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

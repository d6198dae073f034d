package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

func shrink(data []byte, maxHeight, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img := scaleToHeight(src, maxHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func scaleToHeight(src image.Image, maxHeight int) image.Image {
	b := src.Bounds()
	if b.Dy() <= maxHeight {
		return src
	}

	width := b.Dx() * maxHeight / b.Dy()
	if width < 1 {
		width = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, maxHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

package worker

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// screenshotMaxWidth bounds stored screenshots; renderer captures of
	// wide viewports are downscaled to this before encoding.
	screenshotMaxWidth = 1280

	// screenshotJPEGQuality is the quality of the stored re-encode.
	screenshotJPEGQuality = 85
)

// reencodeScreenshot normalizes a raw renderer capture (PNG or JPEG) to a
// width-bounded JPEG. Missing or undecodable input yields empty bytes:
// a bad screenshot must never block storing the ad itself.
func reencodeScreenshot(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte{}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return []byte{}
	}

	if width := img.Bounds().Dx(); width > screenshotMaxWidth {
		img = downscale(img, screenshotMaxWidth)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: screenshotJPEGQuality}); err != nil {
		return []byte{}
	}
	return buf.Bytes()
}

func downscale(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	height := bounds.Dy() * maxWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

package extraction

import (
	"bytes"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"
	"math"

	"github.com/gen2brain/heic"
	"golang.org/x/image/draw"
)

const (
	// maxRawBytes is the size above which an image is downscaled and
	// recompressed before being sent to the vision model
	maxRawBytes = 2 << 20 // 2 MiB

	// maxDimension is the largest width or height sent to the vision model
	maxDimension = 2048
)

// NormalizeImage re-encodes an uploaded image as JPEG for the vision model.
// Images over 2 MiB or larger than 2048px on either side are downscaled to
// fit 2048x2048 (aspect ratio preserved, never upscaled) and encoded at
// quality 85; everything else is re-encoded at quality 95 purely for format
// consistency. If decoding or encoding fails the original bytes are returned
// unchanged and the request proceeds with them.
func NormalizeImage(data []byte) []byte {
	img, err := decodeImage(data)
	if err != nil {
		slog.Warn("Image normalization failed, using original bytes", "error", err)
		return data
	}

	bounds := img.Bounds()
	needsResize := bounds.Dx() > maxDimension || bounds.Dy() > maxDimension

	quality := 95
	if needsResize || len(data) > maxRawBytes {
		quality = 85
	}
	if needsResize {
		img = downscale(img, maxDimension)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		slog.Warn("Image normalization failed, using original bytes", "error", err)
		return data
	}
	return buf.Bytes()
}

// decodeImage decodes JPEG, PNG, GIF, or HEIC image bytes
func decodeImage(data []byte) (image.Image, error) {
	// HEIC/HEIF (common on iPhones) is not supported by Go's standard image
	// package, so it is sniffed and decoded separately
	if isHEICFormat(data) {
		return heic.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// downscale scales img so neither dimension exceeds max, preserving aspect ratio
func downscale(img image.Image, max int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := float64(max) / float64(w)
	if h > w {
		scale = float64(max) / float64(h)
	}

	dw := int(math.Round(float64(w) * scale))
	dh := int(math.Round(float64(h) * scale))
	if dw > max {
		dw = max
	}
	if dh > max {
		dh = max
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/Limmita2/FaseWatch/internal/identity"
)

// cropPadding widens each side of a face box by this fraction of its size.
const cropPadding = 0.1

const cropJPEGQuality = 90

var errEmptyCrop = errors.New("face box is empty after clamping")

// DecodeImage decodes JPEG/PNG/GIF/BMP/TIFF bytes honouring EXIF orientation.
// Failures wrap identity.ErrUndecodable.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w: %w", identity.ErrUndecodable, err)
	}
	return img, nil
}

// CropJPEG encodes the padded face region as JPEG. It satisfies
// identity.CropFunc.
func CropJPEG(img image.Image, bbox [4]float32) ([]byte, error) {
	crop, err := cropFace(img, bbox)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, crop, imaging.JPEG, imaging.JPEGQuality(cropJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// cropFace extracts the face region plus padding, clamped to the image.
func cropFace(img image.Image, bbox [4]float32) (*image.NRGBA, error) {
	bounds := img.Bounds()
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return nil, errEmptyCrop
	}
	padW, padH := w*cropPadding, h*cropPadding

	rect := image.Rect(
		int(bbox[0]-padW), int(bbox[1]-padH),
		int(bbox[2]+padW), int(bbox[3]+padH),
	).Intersect(bounds)
	if rect.Empty() {
		return nil, errEmptyCrop
	}
	return imaging.Crop(img, rect), nil
}

func preprocessForDetection(img image.Image, size int) []float32 {
	return toCHW(imaging.Resize(img, size, size, imaging.Linear), [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})
}

func preprocessForEmbedding(img image.Image) []float32 {
	return toCHW(imaging.Resize(img, embedInputSize, embedInputSize, imaging.Linear), [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

// toCHW converts an NRGBA image to CHW float32 with
// pixel = (pixel - mean) / std.
func toCHW(img *image.NRGBA, mean, std [3]float32) []float32 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			idx := y*w + x
			data[idx] = (float32(px[0]) - mean[0]) / std[0]
			data[plane+idx] = (float32(px[1]) - mean[1]) / std[1]
			data[2*plane+idx] = (float32(px[2]) - mean[2]) / std[2]
		}
	}
	return data
}

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Limmita2/FaseWatch/internal/identity"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(40, 20, color.White), nil))

	img, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestDecodeImage_Garbage(t *testing.T) {
	_, err := DecodeImage([]byte("not an image"))
	assert.ErrorIs(t, err, identity.ErrUndecodable)
	assert.True(t, identity.IsPermanent(err))
}

func TestCropJPEG_PadsAndClamps(t *testing.T) {
	img := solid(100, 100, color.Black)

	data, err := CropJPEG(img, [4]float32{20, 20, 70, 70})
	require.NoError(t, err)

	crop, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// 50px box plus 5px each side
	assert.Equal(t, 60, crop.Bounds().Dx())
	assert.Equal(t, 60, crop.Bounds().Dy())

	data, err = CropJPEG(img, [4]float32{0, 0, 100, 100})
	require.NoError(t, err)
	crop, err = jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, crop.Bounds().Dx())
}

func TestCropJPEG_EmptyBox(t *testing.T) {
	img := solid(10, 10, color.Black)

	_, err := CropJPEG(img, [4]float32{5, 5, 5, 9})
	assert.ErrorIs(t, err, errEmptyCrop)

	_, err = CropJPEG(img, [4]float32{50, 50, 60, 60})
	assert.ErrorIs(t, err, errEmptyCrop)
}

func TestToCHW(t *testing.T) {
	img := solid(2, 1, color.NRGBA{R: 255, G: 127, B: 0, A: 255})

	data := toCHW(img, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
	require.Len(t, data, 6)
	// planes are R, G, B in that order
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, 1.0, data[1], 1e-6)
	assert.InDelta(t, -0.0039, data[2], 1e-3)
	assert.InDelta(t, -1.0, data[4], 1e-6)
}

func TestPreprocessShapes(t *testing.T) {
	img := solid(300, 200, color.White)

	assert.Len(t, preprocessForDetection(img, 64), 3*64*64)
	assert.Len(t, preprocessForEmbedding(img), 3*embedInputSize*embedInputSize)
}

package convert_test

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/convert"
	"caseflow/internal/testsupport"
)

func TestImageConvertsPNGToJPEG(t *testing.T) {
	src := testsupport.PNGImage(t, 320, 200, color.RGBA{R: 200, G: 30, B: 40, A: 255})

	result, err := convert.Image(src, convert.Options{})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.ContentType)
	assert.Equal(t, 320, result.Width)
	assert.Equal(t, 200, result.Height)

	decoded, format, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 320, decoded.Bounds().Dx())
}

func TestImageDownscalesToBoundingBox(t *testing.T) {
	src := testsupport.PNGImage(t, 800, 400, color.White)

	result, err := convert.Image(src, convert.Options{MaxWidth: 200, MaxHeight: 200})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 100, result.Height)
}

func TestImageNeverUpscales(t *testing.T) {
	src := testsupport.PNGImage(t, 50, 40, color.Black)

	result, err := convert.Image(src, convert.Options{MaxWidth: 1000, MaxHeight: 1000})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Width)
	assert.Equal(t, 40, result.Height)
}

func TestImageIsDeterministic(t *testing.T) {
	src := testsupport.PNGImage(t, 120, 90, color.RGBA{R: 10, G: 120, B: 220, A: 255})

	first, err := convert.Image(src, convert.Options{MaxWidth: 60, MaxHeight: 60})
	require.NoError(t, err)
	second, err := convert.Image(src, convert.Options{MaxWidth: 60, MaxHeight: 60})
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
}

func TestImageRejectsGarbage(t *testing.T) {
	_, err := convert.Image([]byte("not an image"), convert.Options{})
	require.Error(t, err)

	_, err = convert.Image(nil, convert.Options{})
	require.Error(t, err)
}

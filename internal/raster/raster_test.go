package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func stripes(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if x%4 < 2 {
				c = color.RGBA{A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	ops := New()
	data, err := ops.EncodeJPEG(stripes(40, 20))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := ops.Decode(data)
	require.NoError(t, err)
	require.Equal(t, 40, img.Bounds().Dx())
	require.Equal(t, 20, img.Bounds().Dy())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := New().Decode([]byte("not an image"))
	require.Error(t, err)
}

func TestResizeWidth(t *testing.T) {
	t.Parallel()

	ops := New()
	out := ops.Resize(stripes(100, 50), 1500)
	require.Equal(t, 1500, out.Bounds().Dx())
	require.Equal(t, 750, out.Bounds().Dy(), "aspect ratio preserved")

	same := ops.Resize(stripes(100, 50), 0)
	require.Equal(t, 100, same.Bounds().Dx())
}

func TestThresholdIsBinary(t *testing.T) {
	t.Parallel()

	out := New().Threshold(stripes(8, 4), 128)
	bounds := out.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(out.At(x, y)).(color.Gray)
			require.Contains(t, []uint8{0, 255}, g.Y)
		}
	}
}

func TestNegateFlipsLuminance(t *testing.T) {
	t.Parallel()

	ops := New()
	white := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			white.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	out := ops.Negate(white)
	g := color.GrayModel.Convert(out.At(0, 0)).(color.Gray)
	require.Less(t, g.Y, uint8(10))
}

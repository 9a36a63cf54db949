package barcode

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

func TestDecodeBlankImageReturnsNoBarcode(t *testing.T) {
	t.Parallel()

	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	_, err := New().Decode(context.Background(), blank, nil)
	require.ErrorIs(t, err, crawler.ErrNoBarcode)
}

func TestDecodeHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blank := image.NewGray(image.Rect(0, 0, 8, 8))
	_, err := New().Decode(ctx, blank, []string{"EAN_13"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestToFormatsIgnoresUnknownNames(t *testing.T) {
	t.Parallel()

	formats := toFormats([]string{"EAN_13", "QR_CODE", "UPC_A"})
	require.Len(t, formats, 2)
	require.Nil(t, toFormats([]string{"bogus"}))
}

package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopBrowser(t *testing.T) {
	t.Parallel()

	b := NewNoop()
	_, err := b.NewPage(context.Background())
	require.Error(t, err)
	require.NoError(t, b.Close(context.Background()))
}

func TestForwardCancelPropagates(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()

	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not canceled")
	}
}

func TestForwardCancelNilParent(t *testing.T) {
	t.Parallel()

	stop := forwardCancel(nil, func() {})
	stop() // must not panic
}

func TestCloseNilBrowser(t *testing.T) {
	t.Parallel()

	var b *Chromedp
	require.NoError(t, b.Close(context.Background()))
}

func TestPageInterceptedJSONCopies(t *testing.T) {
	t.Parallel()

	p := &page{}
	p.intercepted = [][]byte{[]byte(`{"a":1}`)}
	got := p.InterceptedJSON()
	require.Len(t, got, 1)
	got[0] = nil
	require.NotNil(t, p.intercepted[0])
}

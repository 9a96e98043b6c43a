package device_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldlens/go-fieldlens/pkg/device"
)

func TestGatewayFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("first success wins", func(t *testing.T) {
		mock := device.NewMock().Script(device.ErrOverconstrained, nil)
		gw := device.NewGateway(mock)

		s, err := gw.OpenStream(ctx, device.FallbackChain(device.FacingBack))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer gw.Release()

		if !s.Live() {
			t.Error("expected live stream")
		}
		calls := mock.Calls()
		if len(calls) != 2 {
			t.Fatalf("expected 2 open attempts, got %d", len(calls))
		}
		if calls[0].Facing != device.FacingBack || calls[0].Width != device.PreferredWidth {
			t.Errorf("first attempt should be ideal facing + resolution, got %v", calls[0])
		}
		if calls[1].Facing != device.FacingBack || calls[1].Width != 0 {
			t.Errorf("second attempt should be facing only, got %v", calls[1])
		}
	})

	t.Run("all attempts fail", func(t *testing.T) {
		mock := device.NewMock().Script(
			device.ErrOverconstrained,
			device.ErrOverconstrained,
			device.ErrNotFound,
			device.ErrDeviceBusy,
		)
		gw := device.NewGateway(mock)

		_, err := gw.OpenStream(ctx, device.FallbackChain(device.FacingBack))
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, device.ErrNoCameraAvailable) {
			t.Errorf("expected ErrNoCameraAvailable, got %v", err)
		}
		if !errors.Is(err, device.ErrDeviceBusy) {
			t.Errorf("expected last failure to be wrapped, got %v", err)
		}
		if mock.LiveHandles() != 0 {
			t.Errorf("expected 0 live handles, got %d", mock.LiveHandles())
		}
	})

	t.Run("never holds two streams", func(t *testing.T) {
		mock := device.NewMock()
		gw := device.NewGateway(mock)

		first, err := gw.OpenStream(ctx, device.FallbackChain(device.FacingBack))
		if err != nil {
			t.Fatalf("first open: %v", err)
		}
		if _, err := gw.OpenStream(ctx, device.FallbackChain(device.FacingFront)); err != nil {
			t.Fatalf("second open: %v", err)
		}

		if first.Live() {
			t.Error("first stream should be released by the second open")
		}
		if mock.LiveHandles() != 1 {
			t.Errorf("expected exactly 1 live handle, got %d", mock.LiveHandles())
		}
		gw.Release()
		if mock.LiveHandles() != 0 {
			t.Errorf("expected 0 live handles after release, got %d", mock.LiveHandles())
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		mock := device.NewMock()
		gw := device.NewGateway(mock)
		if _, err := gw.OpenStream(ctx, device.FallbackChain(device.FacingAny)); err != nil {
			t.Fatalf("open: %v", err)
		}
		gw.Release()
		gw.Release()
		if gw.LiveStreams() != 0 {
			t.Errorf("expected 0 live streams, got %d", gw.LiveStreams())
		}
	})
}

func TestFallbackChain(t *testing.T) {
	chain := device.FallbackChain(device.FacingFront)
	if len(chain) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(chain))
	}
	if chain[2].Facing != device.FacingBack {
		t.Errorf("third attempt should try the opposite camera, got %v", chain[2].Facing)
	}
	if chain[3].Facing != device.FacingAny {
		t.Errorf("last attempt should accept any camera, got %v", chain[3].Facing)
	}

	anyChain := device.FallbackChain(device.FacingAny)
	if len(anyChain) != 2 {
		t.Fatalf("expected 2 entries for FacingAny, got %d", len(anyChain))
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want device.Reason
	}{
		{device.ErrPermissionDenied, device.ReasonPermissionDenied},
		{device.ErrNotFound, device.ReasonNotFound},
		{device.ErrDeviceBusy, device.ReasonBusy},
		{device.ErrOverconstrained, device.ReasonOverconstrained},
		{device.ErrSecurityBlocked, device.ReasonSecurity},
		{errors.New("weird"), device.ReasonUnknown},
	}
	for _, c := range cases {
		if got := device.Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.err, got, c.want)
		}
	}

	t.Run("classifies through the fallback wrapper", func(t *testing.T) {
		mock := device.NewMock().Script(
			device.ErrPermissionDenied, device.ErrPermissionDenied,
			device.ErrPermissionDenied, device.ErrPermissionDenied,
		)
		gw := device.NewGateway(mock)
		_, err := gw.OpenStream(context.Background(), device.FallbackChain(device.FacingBack))
		if got := device.Classify(err); got != device.ReasonPermissionDenied {
			t.Errorf("Classify = %v, want permission-denied", got)
		}
	})
}

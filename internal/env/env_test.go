package env

import (
	"log"
	"testing"
)

type fakeTunnel struct {
	closed bool
}

func (f *fakeTunnel) Close() { f.closed = true }

func TestTrackUntrackLiveCount(t *testing.T) {
	e := New(nil, log.Default())
	if e.Live() != 0 {
		t.Fatalf("Live() = %d, want 0", e.Live())
	}

	a, b := &fakeTunnel{}, &fakeTunnel{}
	e.Track(a)
	e.Track(b)
	if e.Live() != 2 {
		t.Fatalf("Live() = %d, want 2", e.Live())
	}

	e.Untrack(a)
	if e.Live() != 1 {
		t.Fatalf("Live() = %d, want 1", e.Live())
	}
}

func TestShutdownClosesEveryTrackedTunnel(t *testing.T) {
	e := New(nil, log.Default())
	tunnels := []*fakeTunnel{{}, {}, {}}
	for _, tun := range tunnels {
		e.Track(tun)
	}

	e.Shutdown()

	for i, tun := range tunnels {
		if !tun.closed {
			t.Fatalf("tunnel %d was not closed by Shutdown", i)
		}
	}
	// Shutdown only closes tracked tunnels; it's each tunnel's own
	// teardown path that calls Untrack, so the live set is unchanged
	// here since fakeTunnel.Close doesn't call back into e.
	if e.Live() != len(tunnels) {
		t.Fatalf("Live() after Shutdown = %d, want %d", e.Live(), len(tunnels))
	}
}

func TestUntrackUnknownTunnelIsNoOp(t *testing.T) {
	e := New(nil, log.Default())
	e.Untrack(&fakeTunnel{})
	if e.Live() != 0 {
		t.Fatalf("Live() = %d, want 0", e.Live())
	}
}

package socket

import (
	"net"
	"testing"
	"time"
)

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestNewDefaultStates(t *testing.T) {
	client, _ := pipePair(t)
	c := New(client, 0, nil)
	if c.ReadState() != StateStop || c.WriteState() != StateStop {
		t.Fatal("new Context must start both directions at StateStop")
	}
	if c.Dead() {
		t.Fatal("new Context must not report Dead")
	}
}

func TestSetStateTransitions(t *testing.T) {
	client, _ := pipePair(t)
	c := New(client, 0, nil)
	c.SetReadState(StateBusy)
	c.SetWriteState(StateDone)
	if c.ReadState() != StateBusy {
		t.Fatalf("ReadState = %v, want StateBusy", c.ReadState())
	}
	if c.WriteState() != StateDone {
		t.Fatalf("WriteState = %v, want StateDone", c.WriteState())
	}
}

func TestCloseIsIdempotentAndMarksDead(t *testing.T) {
	client, _ := pipePair(t)
	c := New(client, 0, nil)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got: %v", err)
	}
	if !c.Dead() {
		t.Fatal("Close must leave both directions StateDead")
	}
}

func TestIdleTimeoutFiresOnIdle(t *testing.T) {
	client, _ := pipePair(t)
	fired := make(chan struct{})
	c := New(client, 20*time.Millisecond, func() { close(fired) })
	defer c.Close()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onIdle did not fire within the idle timeout")
	}
}

func TestTouchPostponesIdleTimeout(t *testing.T) {
	client, _ := pipePair(t)
	fired := make(chan struct{})
	c := New(client, 60*time.Millisecond, func() { close(fired) })
	defer c.Close()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.Touch()
		time.Sleep(20 * time.Millisecond)
		select {
		case <-fired:
			t.Fatal("onIdle fired despite repeated Touch calls")
		default:
		}
	}
}

func TestReadWriteDelegatesToConn(t *testing.T) {
	client, server := pipePair(t)
	c := New(client, 0, nil)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 5)
		server.Read(buf)
		server.Write(buf)
		close(done)
	}()

	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	if _, err := c.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}
	<-done
}

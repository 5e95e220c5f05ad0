package socks5

import (
	"bytes"
	"testing"
)

func TestGreetingThenRequestWholeMessage(t *testing.T) {
	p := NewParser()
	status, n := p.Feed([]byte{Version, 1, AuthNone})
	if status != AuthSelect {
		t.Fatalf("status = %v, want AuthSelect", status)
	}
	if n != 3 {
		t.Fatalf("consumed = %d, want 3", n)
	}
	if len(p.Methods()) != 1 || p.Methods()[0] != AuthNone {
		t.Fatalf("Methods() = %v", p.Methods())
	}

	p.ResetForRequest()

	req := []byte{Version, CmdConnect, 0x00, ATYPDomain, 7}
	req = append(req, []byte("example")...)
	req = append(req, 0x01, 0xBB) // port 443

	status, n = p.Feed(req)
	if status != ExecCmd {
		t.Fatalf("status = %v, want ExecCmd", status)
	}
	if n != len(req) {
		t.Fatalf("consumed = %d, want %d", n, len(req))
	}
	if p.Command != CmdConnect {
		t.Fatalf("Command = %x", p.Command)
	}
	if p.AddressType != ATYPDomain {
		t.Fatalf("AddressType = %x", p.AddressType)
	}
	if !bytes.Equal(p.DestAddr, []byte("example")) {
		t.Fatalf("DestAddr = %q", p.DestAddr)
	}
	if p.DestPort != 443 {
		t.Fatalf("DestPort = %d, want 443", p.DestPort)
	}
}

// Feeding a byte at a time must reach the same terminal status and
// fields as feeding the whole message at once — the parser's core
// resumability property.
func TestResumableByteAtATime(t *testing.T) {
	whole := []byte{Version, CmdConnect, 0x00, ATYPIPv4, 10, 0, 0, 1, 0x1F, 0x90}

	p := NewParser()
	p.Feed([]byte{Version, 1, AuthNone})
	p.ResetForRequest()

	var lastStatus Status
	total := 0
	for _, b := range whole {
		status, n := p.Feed([]byte{b})
		lastStatus = status
		total += n
		if status == Error {
			t.Fatalf("unexpected Error at byte %d: %v", total, p.Err())
		}
	}
	if lastStatus != ExecCmd {
		t.Fatalf("final status = %v, want ExecCmd", lastStatus)
	}
	if total != len(whole) {
		t.Fatalf("total consumed = %d, want %d", total, len(whole))
	}
	if p.AddressType != ATYPIPv4 {
		t.Fatalf("AddressType = %x", p.AddressType)
	}
	if !bytes.Equal(p.DestAddr, []byte{10, 0, 0, 1}) {
		t.Fatalf("DestAddr = %v", p.DestAddr)
	}
	if p.DestPort != 8080 {
		t.Fatalf("DestPort = %d, want 8080", p.DestPort)
	}
}

// Arbitrary fragmentation boundaries must not change the result:
// split the same message at every possible cut point and compare.
func TestResumableArbitraryFragmentation(t *testing.T) {
	whole := []byte{Version, CmdUDPAssoc, 0x00, ATYPIPv6}
	ipv6 := bytes.Repeat([]byte{0xAB}, 16)
	whole = append(whole, ipv6...)
	whole = append(whole, 0x00, 0x35)

	for cut := 1; cut < len(whole); cut++ {
		p := NewParser()
		p.Feed([]byte{Version, 1, AuthNone})
		p.ResetForRequest()

		status, n1 := p.Feed(whole[:cut])
		if status == Error {
			t.Fatalf("cut=%d: unexpected Error: %v", cut, p.Err())
		}
		total := n1
		if status != ExecCmd {
			status, n2 := p.Feed(whole[cut:])
			total += n2
			if status != ExecCmd {
				t.Fatalf("cut=%d: status = %v, want ExecCmd", cut, status)
			}
		}
		if total != len(whole) {
			t.Fatalf("cut=%d: total consumed = %d, want %d", cut, total, len(whole))
		}
		if p.Command != CmdUDPAssoc || p.AddressType != ATYPIPv6 || p.DestPort != 0x35 {
			t.Fatalf("cut=%d: fields mismatch: cmd=%x atyp=%x port=%d", cut, p.Command, p.AddressType, p.DestPort)
		}
	}
}

func TestBadVersionRejected(t *testing.T) {
	p := NewParser()
	status, _ := p.Feed([]byte{0x04, 1, AuthNone})
	if status != Error {
		t.Fatalf("status = %v, want Error", status)
	}
	if p.Err() != ErrBadVersion {
		t.Fatalf("Err() = %v, want ErrBadVersion", p.Err())
	}
}

func TestBadCommandRejected(t *testing.T) {
	p := NewParser()
	p.Feed([]byte{Version, 1, AuthNone})
	p.ResetForRequest()
	status, _ := p.Feed([]byte{Version, 0x7F, 0x00, ATYPIPv4, 1, 2, 3, 4, 0, 80})
	if status != Error {
		t.Fatalf("status = %v, want Error", status)
	}
	if p.Err() != ErrBadCommand {
		t.Fatalf("Err() = %v, want ErrBadCommand", p.Err())
	}
}

func TestBadATYPRejected(t *testing.T) {
	p := NewParser()
	p.Feed([]byte{Version, 1, AuthNone})
	p.ResetForRequest()
	status, _ := p.Feed([]byte{Version, CmdConnect, 0x00, 0x7F})
	if status != Error {
		t.Fatalf("status = %v, want Error", status)
	}
	if p.Err() != ErrBadATYP {
		t.Fatalf("Err() = %v, want ErrBadATYP", p.Err())
	}
}

// A poisoned parser must keep reporting Error rather than resuming.
func TestPoisonedParserStaysPoisoned(t *testing.T) {
	p := NewParser()
	p.Feed([]byte{0x04})
	status, n := p.Feed([]byte{Version, 1, AuthNone})
	if status != Error || n != 0 {
		t.Fatalf("status=%v n=%d, want Error/0 once poisoned", status, n)
	}
}

// Junk appended after a complete request must be left unconsumed so
// the session engine can detect and reject it.
func TestJunkAfterRequestLeftUnconsumed(t *testing.T) {
	p := NewParser()
	p.Feed([]byte{Version, 1, AuthNone})
	p.ResetForRequest()

	req := []byte{Version, CmdConnect, 0x00, ATYPIPv4, 1, 2, 3, 4, 0, 80}
	junk := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	status, n := p.Feed(append(append([]byte{}, req...), junk...))
	if status != ExecCmd {
		t.Fatalf("status = %v, want ExecCmd", status)
	}
	if n != len(req) {
		t.Fatalf("consumed = %d, want %d (junk must not be consumed)", n, len(req))
	}
}

func TestNoAuthMethodsOffered(t *testing.T) {
	p := NewParser()
	status, n := p.Feed([]byte{Version, 0})
	if status != AuthSelect {
		t.Fatalf("status = %v, want AuthSelect", status)
	}
	if n != 2 {
		t.Fatalf("consumed = %d, want 2", n)
	}
	if len(p.Methods()) != 0 {
		t.Fatalf("Methods() = %v, want empty", p.Methods())
	}
}

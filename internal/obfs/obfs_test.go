package obfs

import (
	"bytes"
	"strings"
	"testing"
)

func TestOriginObfsPassthrough(t *testing.T) {
	o, err := NewObfs("plain")
	if err != nil {
		t.Fatal(err)
	}
	o.SetServerInfo(newTestServerInfo(""))

	data := []byte("unchanged bytes")
	encoded, err := o.ClientEncode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(encoded, data) {
		t.Fatalf("ClientEncode mutated data: got %q", encoded)
	}
	decoded, needFeedback, err := o.ClientDecode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if needFeedback {
		t.Fatal("origin obfs must never request feedback")
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("ClientDecode mutated data: got %q", decoded)
	}
}

// http_simple/http_post must disguise only the first outgoing chunk,
// and ClientDecode must strip exactly what ClientEncode added,
// regardless of how the header bytes are split across Decode calls.
func TestHTTPSimpleRoundTrip(t *testing.T) {
	for _, variant := range []string{"http_simple", "http_post"} {
		variant := variant
		t.Run(variant, func(t *testing.T) {
			enc, err := NewObfs(variant)
			if err != nil {
				t.Fatal(err)
			}
			enc.SetServerInfo(newTestServerInfo(""))

			payload1 := []byte("first chunk payload")
			wire1, err := enc.ClientEncode(payload1)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(wire1), "Host: example.com") {
				t.Fatalf("disguised request missing Host header: %q", wire1)
			}
			if !strings.Contains(string(wire1), "\r\n\r\n") {
				t.Fatalf("disguised request missing header terminator: %q", wire1)
			}

			payload2 := []byte("second chunk, not disguised")
			wire2, err := enc.ClientEncode(payload2)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(wire2, payload2) {
				t.Fatalf("second chunk was unexpectedly disguised: %q", wire2)
			}

			dec, err := NewObfs(variant)
			if err != nil {
				t.Fatal(err)
			}
			dec.SetServerInfo(newTestServerInfo(""))

			var recovered []byte
			for _, b := range wire1 {
				out, _, err := dec.ClientDecode([]byte{b})
				if err != nil {
					t.Fatalf("ClientDecode: %v", err)
				}
				recovered = append(recovered, out...)
			}
			out, _, err := dec.ClientDecode(wire2)
			if err != nil {
				t.Fatalf("ClientDecode: %v", err)
			}
			recovered = append(recovered, out...)

			want := append(append([]byte{}, payload1...), payload2...)
			if !bytes.Equal(recovered, want) {
				t.Fatalf("round trip mismatch: got %q, want %q", recovered, want)
			}
		})
	}
}

// tls1.2_ticket_auth's first chunk becomes an unrecoverable-by-decode
// ClientHello (the smuggled payload only a real server's ticket-cache
// logic could extract); but every record after that is plain
// application_data and must round-trip byte for byte.
func TestTLS12TicketAuthApplicationDataRoundTrip(t *testing.T) {
	enc, err := NewObfs("tls1.2_ticket_auth")
	if err != nil {
		t.Fatal(err)
	}
	enc.SetServerInfo(newTestServerInfo(""))

	if _, err := enc.ClientEncode([]byte("smuggled in the ClientHello ticket")); err != nil {
		t.Fatalf("ClientEncode(hello): %v", err)
	}

	payload := []byte("steady state application data")
	wire, err := enc.ClientEncode(payload)
	if err != nil {
		t.Fatalf("ClientEncode(payload): %v", err)
	}
	if wire[0] != tlsRecordApplicationData {
		t.Fatalf("record type = %x, want application_data", wire[0])
	}

	dec, err := NewObfs("tls1.2_ticket_auth")
	if err != nil {
		t.Fatal(err)
	}
	dec.SetServerInfo(newTestServerInfo(""))

	out, needFeedback, err := dec.ClientDecode(wire)
	if err != nil {
		t.Fatalf("ClientDecode: %v", err)
	}
	if needFeedback {
		t.Fatal("tls1.2_ticket_auth must never request feedback")
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("round trip mismatch: got %q, want %q", out, payload)
	}
}

// Non-application_data records (the server's handshake reply) must be
// swallowed without surfacing any bytes to the caller.
func TestTLS12TicketAuthSwallowsHandshakeRecords(t *testing.T) {
	dec, err := NewObfs("tls1.2_ticket_auth")
	if err != nil {
		t.Fatal(err)
	}
	dec.SetServerInfo(newTestServerInfo(""))

	handshakeRecord := []byte{tlsRecordHandshake, 0x03, 0x03, 0x00, 0x02, 0xAA, 0xBB}
	out, _, err := dec.ClientDecode(handshakeRecord)
	if err != nil {
		t.Fatalf("ClientDecode: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("handshake record leaked %d bytes to caller", len(out))
	}
}

func TestTLS12TicketAuthRejectsOversizedRecord(t *testing.T) {
	dec, err := NewObfs("tls1.2_ticket_auth")
	if err != nil {
		t.Fatal(err)
	}
	dec.SetServerInfo(newTestServerInfo(""))

	bad := []byte{tlsRecordApplicationData, 0x03, 0x03, 0xFF, 0xFF}
	if _, _, err := dec.ClientDecode(bad); err == nil {
		t.Fatal("expected an error for an oversized record length")
	}
}

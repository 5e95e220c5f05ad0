// Package addrutil converts between the SOCKS5 wire address forms and
// Go's net types, and resolves domain names with the first-answer-
// wins policy the spec calls for (no fallback across multiple A/AAAA
// records).
package addrutil

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"ssrlocal/internal/socks5"
)

// Package builds the SOCKS5/SSR wire address package (ATYP ‖ address
// ‖ port) from a parsed request, the bytes the tunnel cipher's first
// Encrypt call carries as the initial address package.
func Package(atyp byte, destAddr []byte, destPort uint16) []byte {
	out := make([]byte, 0, 1+len(destAddr)+1+2)
	out = append(out, atyp)
	if atyp == socks5.ATYPDomain {
		out = append(out, byte(len(destAddr)))
	}
	out = append(out, destAddr...)
	out = append(out, byte(destPort>>8), byte(destPort))
	return out
}

// HostPort renders a SOCKS5 request's address fields as a dial target
// string. Domain names are placed in the string as given, without DNS
// resolution; Resolve does that.
func HostPort(atyp byte, destAddr []byte, destPort uint16) (string, error) {
	switch atyp {
	case socks5.ATYPIPv4, socks5.ATYPIPv6:
		ip := net.IP(destAddr)
		return net.JoinHostPort(ip.String(), portString(destPort)), nil
	case socks5.ATYPDomain:
		return net.JoinHostPort(string(destAddr), portString(destPort)), nil
	default:
		return "", fmt.Errorf("addrutil: unsupported address type %d", atyp)
	}
}

func portString(port uint16) string {
	return fmt.Sprintf("%d", port)
}

// LiteralIP reports whether destAddr is already a literal IP address,
// letting the session engine skip DNS and connect directly.
func LiteralIP(atyp byte) bool {
	return atyp == socks5.ATYPIPv4 || atyp == socks5.ATYPIPv6
}

// Resolve looks up host and returns the first address the resolver
// returns, deliberately not falling back to subsequent records if the
// first one fails to connect (see spec's Non-goals).
func Resolve(ctx context.Context, host string) (net.IP, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("addrutil: resolve %s: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("addrutil: no addresses for %s", host)
	}
	return ips[0], nil
}

// PutPort encodes port big-endian, the wire order every SOCKS5 and
// SSR address form uses.
func PutPort(buf []byte, port uint16) {
	binary.BigEndian.PutUint16(buf, port)
}

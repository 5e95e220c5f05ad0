// Package socks5 implements the client-facing SOCKS5 wire protocol: a
// resumable request parser tolerant of fragmented reads, and the fixed
// reply byte patterns RFC 1928 requires.
package socks5

import "fmt"

// Version is the only SOCKS version this parser accepts.
const Version = 0x05

// Auth methods offered in the greeting.
const (
	AuthNone     = 0x00
	AuthGSSAPI   = 0x01
	AuthPassword = 0x02
	AuthNoAccept = 0xFF
)

// Commands.
const (
	CmdConnect  = 0x01
	CmdBind     = 0x02
	CmdUDPAssoc = 0x03
)

// Address types.
const (
	ATYPIPv4   = 0x01
	ATYPDomain = 0x03
	ATYPIPv6   = 0x04
)

// Status is the result of feeding bytes to the parser.
type Status int

const (
	// NeedMore indicates the parser consumed everything offered and
	// requires additional bytes before it can make progress.
	NeedMore Status = iota
	// AuthSelect indicates the greeting's method list has been parsed;
	// the caller must choose an auth method and call ResetForRequest.
	AuthSelect
	// ExecCmd indicates a complete request has been parsed; Command,
	// AddressType, DestAddr, and DestPort are populated.
	ExecCmd
	// Error indicates the input violates the grammar; the parser is
	// poisoned and must not be fed further bytes.
	Error
)

// Phase is the parser's internal state, exposed for assertions and tests.
type Phase int

const (
	PhaseVersion Phase = iota
	PhaseNMethods
	PhaseMethods
	PhaseAuthSelection
	PhaseReqVersion
	PhaseReqCmd
	PhaseReqRSV
	PhaseReqATYP
	PhaseReqDstAddr
	PhaseReqDstPort
	PhaseDone
)

// Parser is a resumable, byte-at-a-time SOCKS5 parser. Feed consumes a
// prefix of its input and returns a Status together with the number of
// bytes consumed, so the caller can detect unconsumed trailing bytes
// (the "junk" the session engine must reject after a complete request).
type Parser struct {
	phase Phase
	err   error

	nmethods int
	methods  []byte

	Command     byte
	AddressType byte

	atypByte    byte
	domainLen   int
	DestAddr    []byte
	portHi      byte
	portHiSet   bool
	DestPort    uint16
}

// NewParser returns a parser ready to consume a SOCKS5 greeting.
func NewParser() *Parser {
	return &Parser{phase: PhaseVersion}
}

// ResetForRequest rearms the parser to consume the CONNECT/BIND/UDP
// ASSOCIATE request that follows a successful auth negotiation.
func (p *Parser) ResetForRequest() {
	p.phase = PhaseReqVersion
	p.Command = 0
	p.AddressType = 0
	p.atypByte = 0
	p.domainLen = 0
	p.DestAddr = nil
	p.portHi = 0
	p.portHiSet = false
	p.DestPort = 0
}

// Phase reports the parser's current phase.
func (p *Parser) Phase() Phase { return p.phase }

// Err returns the error that poisoned the parser, if any.
func (p *Parser) Err() error { return p.err }

// Methods returns the auth methods offered in the greeting, valid after
// AuthSelect is returned.
func (p *Parser) Methods() []byte { return p.methods }

// ErrBadVersion, ErrBadCommand, and friends are returned via Err after
// Feed reports Error.
var (
	ErrBadVersion = fmt.Errorf("socks5: unsupported protocol version")
	ErrBadCommand = fmt.Errorf("socks5: unsupported command")
	ErrBadATYP    = fmt.Errorf("socks5: unsupported address type")
	ErrPoisoned   = fmt.Errorf("socks5: parser already failed")
)

// Feed advances the parser with input, consuming a prefix of it.
// It returns the resulting status and the number of bytes consumed.
// Feed is safe to call repeatedly with arbitrarily fragmented input —
// feeding a byte at a time yields the same terminal status and fields
// as feeding the whole message at once.
func (p *Parser) Feed(input []byte) (Status, int) {
	if p.err != nil {
		return Error, 0
	}

	consumed := 0
	for consumed < len(input) {
		b := input[consumed]

		switch p.phase {
		case PhaseVersion:
			if b != Version {
				p.err = ErrBadVersion
				return Error, consumed + 1
			}
			p.phase = PhaseNMethods
			consumed++

		case PhaseNMethods:
			p.nmethods = int(b)
			p.methods = make([]byte, 0, p.nmethods)
			consumed++
			if p.nmethods == 0 {
				p.phase = PhaseAuthSelection
				return AuthSelect, consumed
			}
			p.phase = PhaseMethods

		case PhaseMethods:
			p.methods = append(p.methods, b)
			consumed++
			if len(p.methods) == p.nmethods {
				p.phase = PhaseAuthSelection
				return AuthSelect, consumed
			}

		case PhaseAuthSelection:
			// The caller must call ResetForRequest before feeding more
			// bytes; remaining in this phase means the caller hasn't
			// decided yet.
			return AuthSelect, consumed

		case PhaseReqVersion:
			if b != Version {
				p.err = ErrBadVersion
				return Error, consumed + 1
			}
			p.phase = PhaseReqCmd
			consumed++

		case PhaseReqCmd:
			switch b {
			case CmdConnect, CmdBind, CmdUDPAssoc:
				p.Command = b
			default:
				p.err = ErrBadCommand
				return Error, consumed + 1
			}
			p.phase = PhaseReqRSV
			consumed++

		case PhaseReqRSV:
			// RSV must be 0x00 but real clients are tolerant; the spec
			// only mandates version and atyp validation, so RSV is
			// consumed without a strict check.
			p.phase = PhaseReqATYP
			consumed++

		case PhaseReqATYP:
			p.atypByte = b
			switch b {
			case ATYPIPv4:
				p.AddressType = ATYPIPv4
				p.DestAddr = make([]byte, 0, 4)
				p.phase = PhaseReqDstAddr
			case ATYPIPv6:
				p.AddressType = ATYPIPv6
				p.DestAddr = make([]byte, 0, 16)
				p.phase = PhaseReqDstAddr
			case ATYPDomain:
				p.AddressType = ATYPDomain
				// The first byte of the HOST form is itself a length
				// prefix; consume it, stay in ATYP-adjacent handling
				// by transitioning with domainLen pending.
				p.domainLen = -1
				p.phase = PhaseReqDstAddr
			default:
				p.err = ErrBadATYP
				return Error, consumed + 1
			}
			consumed++

		case PhaseReqDstAddr:
			if p.AddressType == ATYPDomain && p.domainLen == -1 {
				p.domainLen = int(b)
				p.DestAddr = make([]byte, 0, p.domainLen)
				consumed++
				if p.domainLen == 0 {
					p.phase = PhaseReqDstPort
				}
				continue
			}
			p.DestAddr = append(p.DestAddr, b)
			consumed++
			want := 4
			switch p.AddressType {
			case ATYPIPv6:
				want = 16
			case ATYPDomain:
				want = p.domainLen
			}
			if len(p.DestAddr) == want {
				p.phase = PhaseReqDstPort
			}

		case PhaseReqDstPort:
			if !p.portHiSet {
				p.portHi = b
				p.portHiSet = true
				consumed++
				continue
			}
			p.DestPort = uint16(p.portHi)<<8 | uint16(b)
			consumed++
			p.phase = PhaseDone
			return ExecCmd, consumed

		case PhaseDone:
			return ExecCmd, consumed
		}
	}

	if p.phase == PhaseAuthSelection {
		return AuthSelect, consumed
	}
	if p.phase == PhaseDone {
		return ExecCmd, consumed
	}
	return NeedMore, consumed
}

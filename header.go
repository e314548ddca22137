package groupcall

import (
	"encoding/binary"
	"fmt"
)

// HeaderKind distinguishes the three correlator message types.
type HeaderKind uint8

const (
	// KindRequest tags an outgoing call.
	KindRequest HeaderKind = iota + 1
	// KindResponse tags a successful reply.
	KindResponse
	// KindExceptionResponse tags a reply carrying a remote failure.
	KindExceptionResponse
)

func (k HeaderKind) String() string {
	switch k {
	case KindRequest:
		return "REQ"
	case KindResponse:
		return "RSP"
	case KindExceptionResponse:
		return "EXC_RSP"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Header is the correlator header attached to every request and response
// message. Its encoding is fixed-width big-endian and must round-trip
// bit-exact across all members of a cluster:
//
//	kind(1) flags(1) request_id(8) corr_id(2)
//
// where flags bit 0 is rsp_expected.
type Header struct {
	RequestID   uint64
	Kind        HeaderKind
	RspExpected bool
	CorrID      uint16
}

const headerLen = 12

const hdrFlagRspExpected = 0x01

// Marshal encodes the header into a fresh 12-byte slice.
func (h *Header) Marshal() []byte {
	buf := make([]byte, headerLen)
	buf[0] = byte(h.Kind)
	if h.RspExpected {
		buf[1] |= hdrFlagRspExpected
	}
	binary.BigEndian.PutUint64(buf[2:10], h.RequestID)
	binary.BigEndian.PutUint16(buf[10:12], h.CorrID)
	return buf
}

// UnmarshalHeader decodes a header previously produced by Marshal.
func UnmarshalHeader(buf []byte) (*Header, error) {
	if len(buf) < headerLen {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBadHeader, headerLen, len(buf))
	}
	kind := HeaderKind(buf[0])
	switch kind {
	case KindRequest, KindResponse, KindExceptionResponse:
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrBadHeader, buf[0])
	}
	return &Header{
		Kind:        kind,
		RspExpected: buf[1]&hdrFlagRspExpected != 0,
		RequestID:   binary.BigEndian.Uint64(buf[2:10]),
		CorrID:      binary.BigEndian.Uint16(buf[10:12]),
	}, nil
}

func (h *Header) String() string {
	return fmt.Sprintf("%s(id=%d, corr=%d, rsp_expected=%t)", h.Kind, h.RequestID, h.CorrID, h.RspExpected)
}

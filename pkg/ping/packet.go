package ping

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// IANA protocol numbers used when parsing inbound ICMP.
const (
	protocolICMP   = 1
	protocolICMPv6 = 58
)

const (
	minPayloadSize = 16
	maxPayloadSize = 1400

	// payloadPattern fills the bytes after the embedded timestamp,
	// same idea as the classic ping(8) pattern bytes.
	payloadPattern = 0xa5
)

// replyKind distinguishes the two inbound message classes the engine
// cares about. Everything else is dropped at parse time.
type replyKind int

const (
	kindEchoReply replyKind = iota
	kindTimeExceeded
)

// reply is one parsed inbound ICMP message relevant to the session.
// For kindTimeExceeded, Src is the reporting router and ID/Seq/Dst are
// recovered from the embedded original echo request.
type reply struct {
	Src    netip.Addr
	Dst    netip.Addr // time-exceeded only: original destination
	ID     uint16
	Seq    uint16
	TTL    int
	Kind   replyKind
	RecvAt time.Time
}

// makePayload builds an echo payload: 8 bytes of big-endian send
// timestamp (nanoseconds) followed by pattern fill.
func makePayload(size int, sentAt time.Time) []byte {
	if size < minPayloadSize {
		size = minPayloadSize
	}
	if size > maxPayloadSize {
		size = maxPayloadSize
	}
	payload := make([]byte, size)
	binary.BigEndian.PutUint64(payload, uint64(sentAt.UnixNano()))
	for i := 8; i < size; i++ {
		payload[i] = payloadPattern
	}
	return payload
}

// buildEcho serializes an ICMP echo request. The v4 checksum is
// computed here; the v6 checksum involves the pseudo-header and is
// filled in by the kernel on send.
func buildEcho(family Family, id, seq uint16, payload []byte) ([]byte, error) {
	var typ icmp.Type = ipv4.ICMPTypeEcho
	if family == FamilyV6 {
		typ = ipv6.ICMPTypeEchoRequest
	}
	msg := icmp.Message{
		Type: typ,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(id),
			Seq:  int(seq),
			Data: payload,
		},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return nil, fmt.Errorf("marshal echo request: %w", err)
	}
	return b, nil
}

// icmpChecksum computes the RFC 792 ones-complement checksum.
func icmpChecksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// validChecksum reports whether a v4 ICMP message checksums to zero.
// The v6 checksum is verified by the kernel before delivery.
func validChecksum(b []byte) bool {
	if len(b) < 8 {
		return false
	}
	return icmpChecksum(b) == 0
}

// parseReply validates and classifies one inbound datagram. The bool
// result is false for anything the session should silently discard:
// truncated data, checksum failures, message types other than
// echo-reply and time-exceeded.
func parseReply(family Family, b []byte, src netip.Addr, ttl int, recvAt time.Time) (reply, bool) {
	proto := protocolICMP
	if family == FamilyV6 {
		proto = protocolICMPv6
	}
	if family == FamilyV4 && !validChecksum(b) {
		return reply{}, false
	}

	msg, err := icmp.ParseMessage(proto, b)
	if err != nil {
		return reply{}, false
	}

	switch body := msg.Body.(type) {
	case *icmp.Echo:
		if msg.Type != ipv4.ICMPTypeEchoReply && msg.Type != ipv6.ICMPTypeEchoReply {
			return reply{}, false
		}
		return reply{
			Src:    src,
			ID:     uint16(body.ID),
			Seq:    uint16(body.Seq),
			TTL:    ttl,
			Kind:   kindEchoReply,
			RecvAt: recvAt,
		}, true
	case *icmp.TimeExceeded:
		if msg.Type != ipv4.ICMPTypeTimeExceeded && msg.Type != ipv6.ICMPTypeTimeExceeded {
			return reply{}, false
		}
		dst, id, seq, ok := parseEmbeddedEcho(family, body.Data)
		if !ok {
			return reply{}, false
		}
		return reply{
			Src:    src,
			Dst:    dst,
			ID:     id,
			Seq:    seq,
			TTL:    ttl,
			Kind:   kindTimeExceeded,
			RecvAt: recvAt,
		}, true
	default:
		return reply{}, false
	}
}

// parseEmbeddedEcho digs the original destination, identifier and
// sequence out of the quoted datagram inside a time-exceeded message
// (IP header plus at least the first 8 bytes of the echo request,
// per RFC 792 / RFC 4443).
func parseEmbeddedEcho(family Family, data []byte) (netip.Addr, uint16, uint16, bool) {
	if family == FamilyV4 {
		if len(data) < 20 {
			return netip.Addr{}, 0, 0, false
		}
		hdrLen := int(data[0]&0x0f) * 4
		if hdrLen < 20 || len(data) < hdrLen+8 {
			return netip.Addr{}, 0, 0, false
		}
		dst, ok := netip.AddrFromSlice(data[16:20])
		if !ok {
			return netip.Addr{}, 0, 0, false
		}
		inner := data[hdrLen:]
		if inner[0] != uint8(ipv4.ICMPTypeEcho) {
			return netip.Addr{}, 0, 0, false
		}
		id := binary.BigEndian.Uint16(inner[4:6])
		seq := binary.BigEndian.Uint16(inner[6:8])
		return dst.Unmap(), id, seq, true
	}

	// v6: fixed 40-byte header, destination at bytes 24..40.
	if len(data) < 40+8 {
		return netip.Addr{}, 0, 0, false
	}
	dst, ok := netip.AddrFromSlice(data[24:40])
	if !ok {
		return netip.Addr{}, 0, 0, false
	}
	inner := data[40:]
	if inner[0] != uint8(ipv6.ICMPTypeEchoRequest) {
		return netip.Addr{}, 0, 0, false
	}
	id := binary.BigEndian.Uint16(inner[4:6])
	seq := binary.BigEndian.Uint16(inner[6:8])
	return dst, id, seq, true
}

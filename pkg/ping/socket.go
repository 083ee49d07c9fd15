package ping

import (
	"fmt"
	"iter"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

var (
	ipv4Networks = map[bool]string{true: "ip4:icmp", false: "udp4"}
	ipv6Networks = map[bool]string{true: "ip6:ipv6-icmp", false: "udp6"}
)

const maxPacketSize = 1500

// echoConn is the session's view of one address-family socket.
// Satisfied by *icmpSocket and by fakes in tests.
type echoConn interface {
	sendEcho(dst netip.Addr, id, seq uint16, payload []byte) error
	pollReplies(deadline time.Time) iter.Seq[reply]
	close() error
}

// icmpSocket owns one open raw or datagram ICMP socket for a single
// address family and does the wire-level send/receive work.
type icmpSocket struct {
	family      Family
	conn        *icmp.PacketConn
	privileged  bool
	granularity time.Duration // per-read deadline inside pollReplies
	clock       Clock
}

// newICMPSocket opens and configures the socket. Raw sockets
// (privileged) need root or CAP_NET_RAW on most platforms; datagram
// ICMP sockets depend on net.ipv4.ping_group_range on Linux.
// Reply TTLs are delivered via control messages, so those are enabled
// up front.
func newICMPSocket(family Family, privileged bool, source string, hopLimit int, granularity time.Duration, clock Clock) (*icmpSocket, error) {
	network := ipv4Networks[privileged]
	bind := source
	if family == FamilyV6 {
		network = ipv6Networks[privileged]
		if bind == "" {
			bind = "::"
		}
	} else if bind == "" {
		bind = "0.0.0.0"
	}

	conn, err := icmp.ListenPacket(network, bind)
	if err != nil {
		return nil, fmt.Errorf("listen %s on %s: %w", network, bind, err)
	}

	if family == FamilyV4 {
		if err := conn.IPv4PacketConn().SetControlMessage(ipv4.FlagTTL, true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable TTL control messages: %w", err)
		}
		if hopLimit > 0 {
			if err := conn.IPv4PacketConn().SetTTL(hopLimit); err != nil {
				conn.Close()
				return nil, fmt.Errorf("set outbound TTL: %w", err)
			}
		}
	} else {
		if err := conn.IPv6PacketConn().SetControlMessage(ipv6.FlagHopLimit, true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable hop-limit control messages: %w", err)
		}
		if hopLimit > 0 {
			if err := conn.IPv6PacketConn().SetHopLimit(hopLimit); err != nil {
				conn.Close()
				return nil, fmt.Errorf("set outbound hop limit: %w", err)
			}
		}
	}

	return &icmpSocket{
		family:      family,
		conn:        conn,
		privileged:  privileged,
		granularity: granularity,
		clock:       clock,
	}, nil
}

// sendEcho serializes and transmits one echo request.
func (s *icmpSocket) sendEcho(dst netip.Addr, id, seq uint16, payload []byte) error {
	b, err := buildEcho(s.family, id, seq, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransmitFailed, err)
	}

	var addr net.Addr
	if s.privileged {
		addr = &net.IPAddr{IP: dst.AsSlice()}
	} else {
		addr = &net.UDPAddr{IP: dst.AsSlice()}
	}
	if _, err := s.conn.WriteTo(b, addr); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransmitFailed, dst, err)
	}
	return nil
}

// pollReplies drains the socket until deadline, yielding every parsed
// echo-reply or time-exceeded message. Reads use short deadlines so
// the caller's round deadline is respected to within one granularity.
// The sequence reflects live socket state: each call starts fresh and
// is not restartable.
func (s *icmpSocket) pollReplies(deadline time.Time) iter.Seq[reply] {
	return func(yield func(reply) bool) {
		buf := make([]byte, maxPacketSize)
		for {
			now := s.clock.Now()
			if !now.Before(deadline) {
				return
			}
			step := now.Add(s.granularity)
			if step.After(deadline) {
				step = deadline
			}
			if err := s.conn.SetReadDeadline(step); err != nil {
				return
			}

			n, ttl, peer, err := s.readOne(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				return
			}
			src, ok := peerAddr(peer)
			if !ok {
				continue
			}
			r, ok := parseReply(s.family, buf[:n], src, ttl, s.clock.Now())
			if !ok {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// readOne receives a single datagram along with the reply TTL from
// the control message, falling back to 0 when the kernel omits it.
func (s *icmpSocket) readOne(buf []byte) (int, int, net.Addr, error) {
	if s.family == FamilyV4 {
		n, cm, peer, err := s.conn.IPv4PacketConn().ReadFrom(buf)
		ttl := 0
		if cm != nil {
			ttl = cm.TTL
		}
		return n, ttl, peer, err
	}
	n, cm, peer, err := s.conn.IPv6PacketConn().ReadFrom(buf)
	ttl := 0
	if cm != nil {
		ttl = cm.HopLimit
	}
	return n, ttl, peer, err
}

func (s *icmpSocket) close() error {
	return s.conn.Close()
}

// peerAddr extracts the source address from either socket flavor.
func peerAddr(peer net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch a := peer.(type) {
	case *net.IPAddr:
		ip = a.IP
	case *net.UDPAddr:
		ip = a.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

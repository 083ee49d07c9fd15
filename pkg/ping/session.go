// Package ping implements a self-contained concurrent ICMP echo
// engine: one session tracks many targets, transmits one echo per
// target per round over shared per-family sockets, matches replies by
// sequence and source (plus identifier on raw sockets) and aggregates
// per-target results.
package ping

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/netip"
	"slices"
	"time"

	"golang.org/x/time/rate"
)

// Config controls session construction. The zero value is usable;
// DefaultConfig documents the defaults.
type Config struct {
	// Privileged selects raw ICMP sockets (requires root or
	// CAP_NET_RAW) over datagram ICMP sockets.
	Privileged bool

	// PayloadSize is the echo payload length in bytes.
	PayloadSize int

	// TTL caps the outbound hop count. 0 keeps the OS default.
	TTL int

	// Source optionally binds the sockets to a local address.
	Source string

	// SendRate limits echo transmissions per second within a round.
	// 0 means unlimited.
	SendRate int

	// PollGranularity bounds each blocking socket read, and with it
	// how far a round may overshoot its deadline.
	PollGranularity time.Duration

	// Resolver handles hostnames passed to AddHost. Defaults to the
	// system DNS resolver.
	Resolver Resolver

	// Clock supplies timestamps. Defaults to the wall clock.
	Clock Clock
}

// DefaultConfig returns the defaults: unprivileged datagram sockets,
// 56-byte payloads, 100ms poll granularity, unlimited send rate.
func DefaultConfig() Config {
	return Config{
		Privileged:      false,
		PayloadSize:     56,
		PollGranularity: 100 * time.Millisecond,
	}
}

// Session is the aggregate root: a set of targets, one socket per
// address family in use, the table of outstanding pings, and the
// latest round result per target.
//
// A Session is not safe for concurrent use. Callers needing parallel
// rounds must use separate sessions, each owning its own sockets.
type Session struct {
	cfg      Config
	id       uint16
	seq      uint16
	resolver Resolver
	clock    Clock
	limiter  *rate.Limiter

	targets []*Target // insertion order
	byAddr  map[netip.Addr]*Target
	results map[netip.Addr]*roundResult
	stats   map[netip.Addr]*targetStats
	table   *sessionTable

	conn4, conn6 echoConn
	closed       bool
}

// NewSession opens the per-family sockets and returns a ready session.
// IPv4 socket acquisition failure is fatal; IPv6 is optional (the
// stack may be disabled) and its absence only fails v6 AddHost calls.
func NewSession(cfg Config) (*Session, error) {
	if cfg.PayloadSize <= 0 {
		cfg.PayloadSize = 56
	}
	if cfg.PollGranularity <= 0 {
		cfg.PollGranularity = 100 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Resolver == nil {
		r, err := NewDNSResolver()
		if err != nil {
			return nil, err
		}
		cfg.Resolver = r
	}

	conn4, err := newICMPSocket(FamilyV4, cfg.Privileged, cfg.Source, cfg.TTL, cfg.PollGranularity, cfg.Clock)
	if err != nil {
		return nil, fmt.Errorf("open IPv4 socket: %w", err)
	}
	conn6, err := newICMPSocket(FamilyV6, cfg.Privileged, "", cfg.TTL, cfg.PollGranularity, cfg.Clock)
	if err != nil {
		slog.Warn("IPv6 unavailable, continuing with IPv4 only", "error", err)
		conn6 = nil
	}

	s := newSession(cfg, conn4, conn6)
	return s, nil
}

// newSession wires the session around already-open conns. Split out
// so tests can drive rounds against fake sockets.
func newSession(cfg Config, conn4, conn6 echoConn) *Session {
	var limiter *rate.Limiter
	if cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), 1)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Session{
		cfg:      cfg,
		id:       uint16(cfg.Clock.Now().UnixNano() & 0xffff),
		resolver: cfg.Resolver,
		clock:    cfg.Clock,
		limiter:  limiter,
		byAddr:   make(map[netip.Addr]*Target),
		results:  make(map[netip.Addr]*roundResult),
		stats:    make(map[netip.Addr]*targetStats),
		table:    newSessionTable(),
		conn4:    conn4,
		conn6:    conn6,
	}
}

// Close releases the sockets. Safe to call more than once; every
// other operation fails with ErrSessionClosed afterwards.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.conn4 != nil {
		err = s.conn4.close()
	}
	if s.conn6 != nil {
		if cerr := s.conn6.close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Count returns the number of tracked targets.
func (s *Session) Count() int { return len(s.targets) }

// AddHost resolves name (hostname or IP literal) and starts tracking
// the resulting address. Fails with ErrResolutionFailed when the
// resolver comes up empty and ErrDuplicateHost when the address is
// already tracked. Other targets are unaffected either way.
func (s *Session) AddHost(ctx context.Context, name string) error {
	if s.closed {
		return ErrSessionClosed
	}

	addr, err := netip.ParseAddr(name)
	if err != nil {
		addr, err = s.resolver.Resolve(ctx, name)
		if err != nil {
			if errors.Is(err, ErrResolutionFailed) {
				return err
			}
			return fmt.Errorf("%w: %s: %v", ErrResolutionFailed, name, err)
		}
	}
	addr = addr.Unmap()

	if _, ok := s.byAddr[addr]; ok {
		return fmt.Errorf("%w: %s (%s)", ErrDuplicateHost, name, addr)
	}

	family := familyOf(addr)
	if family == FamilyV6 && s.conn6 == nil {
		return fmt.Errorf("%w: %s: ipv6 socket unavailable", ErrTransmitFailed, addr)
	}

	t := &Target{UserName: name, Addr: addr, Family: family}
	s.targets = append(s.targets, t)
	s.byAddr[addr] = t
	s.results[addr] = &roundResult{latencyMs: LatencyTimeout, addrStr: addr.String()}
	s.stats[addr] = &targetStats{}
	return nil
}

// RemoveHost stops tracking a target, matched by resolved address for
// IP literals and by the original AddHost string otherwise. Drops the
// target's result and any outstanding state.
func (s *Session) RemoveHost(name string) error {
	if s.closed {
		return ErrSessionClosed
	}

	var target *Target
	if addr, err := netip.ParseAddr(name); err == nil {
		target = s.byAddr[addr.Unmap()]
	} else {
		for _, t := range s.targets {
			if t.UserName == name {
				target = t
				break
			}
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrHostNotFound, name)
	}

	s.targets = slices.DeleteFunc(s.targets, func(t *Target) bool { return t == target })
	delete(s.byAddr, target.Addr)
	delete(s.results, target.Addr)
	delete(s.stats, target.Addr)
	s.table.drop(target.Addr)
	return nil
}

// SendRound transmits one echo per tracked target, then polls the
// sockets until every outstanding ping is answered, timeout elapses,
// or ctx is cancelled. Unanswered targets get the timeout sentinel.
// Returns the number of targets that replied in time.
//
// The round never blocks past timeout by more than one poll
// granularity. Concurrent SendRound calls on one session are a
// precondition violation, not detected internally.
func (s *Session) SendRound(ctx context.Context, timeout time.Duration) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	if len(s.targets) == 0 {
		return 0, nil
	}

	deadline := s.clock.Now().Add(timeout)
	s.sendAll(ctx)
	received := s.collect(ctx, deadline)
	s.expireRemaining()

	if err := ctx.Err(); err != nil {
		return received, err
	}
	return received, nil
}

// sendAll transmits this round's echo requests. Send failures become
// that target's round result immediately and do not abort the round.
func (s *Session) sendAll(ctx context.Context) {
	for _, t := range s.targets {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		seq := s.nextSeq()
		sentAt := s.clock.Now()
		payload := makePayload(s.cfg.PayloadSize, sentAt)

		res := s.results[t.Addr]
		st := s.stats[t.Addr]
		st.sent++

		if err := s.socketFor(t.Family).sendEcho(t.Addr, s.id, seq, payload); err != nil {
			slog.Debug("echo transmit failed", "target", t.Addr, "error", err)
			st.dropped++
			*res = roundResult{
				seq:       seq,
				latencyMs: LatencyTimeout,
				addrStr:   t.Addr.String(),
				err:       err,
			}
			continue
		}
		s.table.insert(t, seq, sentAt)
	}
}

// collect drains both sockets until all outstanding pings resolve or
// the deadline passes. Returns the number of echo replies matched.
func (s *Session) collect(ctx context.Context, deadline time.Time) int {
	received := 0
	for s.table.len() > 0 {
		if ctx.Err() != nil {
			return received
		}
		now := s.clock.Now()
		if !now.Before(deadline) {
			return received
		}
		step := now.Add(s.cfg.PollGranularity)
		if step.After(deadline) {
			step = deadline
		}

		for _, conn := range []echoConn{s.conn4, s.conn6} {
			if s.table.len() == 0 {
				break // don't idle on the other socket's read deadline
			}
			if conn == nil {
				continue
			}
			for r := range conn.pollReplies(step) {
				if s.handleReply(r) {
					received++
				}
				if s.table.len() == 0 {
					break
				}
			}
		}
	}
	return received
}

// handleReply applies one parsed reply to session state. Reports true
// only for an echo reply that consumed an outstanding ping. Foreign
// identifiers, unknown sequences and duplicates are dropped silently;
// time-exceeded reports become a router-hop result for their target.
//
// The identifier gate only applies to raw sockets, which see every
// ICMP message on the host. Datagram sockets cannot use it: the kernel
// rewrites the outbound identifier to its own per-socket value and
// delivers only this socket's replies, so matching falls to
// (address, sequence).
func (s *Session) handleReply(r reply) bool {
	if s.cfg.Privileged && r.ID != s.id {
		return false
	}

	switch r.Kind {
	case kindEchoReply:
		target, elapsed, ok := s.table.resolve(r.Src, r.Seq, r.RecvAt)
		if !ok {
			return false
		}
		s.stats[target.Addr].received++
		*s.results[target.Addr] = roundResult{
			seq:       r.Seq,
			ttl:       r.TTL,
			latencyMs: float64(elapsed.Microseconds()) / 1000.0,
			addrStr:   r.Src.String(),
		}
		return true

	case kindTimeExceeded:
		target, _, ok := s.table.resolve(r.Dst, r.Seq, r.RecvAt)
		if !ok {
			return false
		}
		s.stats[target.Addr].dropped++
		*s.results[target.Addr] = roundResult{
			seq:       r.Seq,
			ttl:       r.TTL,
			latencyMs: LatencyTimeout,
			addrStr:   r.Src.String(),
			err:       ErrTimeExceeded,
		}
	}
	return false
}

// expireRemaining turns every still-outstanding ping into a timeout
// result. Timeouts carry the sentinel latency and no error.
func (s *Session) expireRemaining() {
	for _, o := range s.table.expireAll() {
		addr := o.target.Addr
		st, ok := s.stats[addr]
		if !ok {
			continue // target removed mid-round
		}
		st.dropped++
		*s.results[addr] = roundResult{
			seq:       o.seq,
			latencyMs: LatencyTimeout,
			addrStr:   addr.String(),
		}
	}
}

// Results returns a lazy, restartable view over the latest round
// results in target insertion order. Each call snapshots current
// state without consuming it.
func (s *Session) Results() iter.Seq[ResultView] {
	targets := slices.Clone(s.targets)
	return func(yield func(ResultView) bool) {
		for _, t := range targets {
			res, ok := s.results[t.Addr]
			if !ok {
				continue // removed since the snapshot
			}
			st := s.stats[t.Addr]
			v := ResultView{
				UserName:  t.UserName,
				Address:   res.addrStr,
				Seq:       res.seq,
				TTL:       res.ttl,
				LatencyMs: res.latencyMs,
				Err:       res.err,
				Sent:      st.sent,
				Received:  st.received,
				Dropped:   st.dropped,
			}
			if !yield(v) {
				return
			}
		}
	}
}

func (s *Session) socketFor(f Family) echoConn {
	if f == FamilyV6 {
		return s.conn6
	}
	return s.conn4
}

// nextSeq advances the session-scoped sequence counter, wrapping at
// the uint16 boundary and skipping zero (zero marks "never sent" in
// result placeholders).
func (s *Session) nextSeq() uint16 {
	s.seq++
	if s.seq == 0 {
		s.seq++
	}
	return s.seq
}

package ping

// LatencyTimeout is the latency sentinel stored when a round's echo
// went unanswered. Timeouts are result state, not errors.
const LatencyTimeout = -1.0

// roundResult is the latest round outcome for one target. Each target
// owns its own entry; the next round overwrites it in place.
type roundResult struct {
	seq       uint16
	ttl       int
	latencyMs float64
	addrStr   string // reply source; the reporting router on TTL exceeded
	err       error
}

// targetStats accumulates per-target counters across rounds.
type targetStats struct {
	sent     uint64
	received uint64
	dropped  uint64
}

// ResultView is a read-only snapshot of one target's latest round
// outcome plus its cumulative counters.
type ResultView struct {
	// UserName is the string originally passed to AddHost.
	UserName string

	// Address is the reply's source address in text form. On a
	// time-exceeded result this is the reporting router; otherwise
	// it is the target's resolved address.
	Address string

	// Seq is the sequence number of the latest round's echo.
	Seq uint16

	// TTL is the reply's remaining hop count, 0 when unknown.
	TTL int

	// LatencyMs is the round-trip time in milliseconds, or
	// LatencyTimeout when no reply arrived in time.
	LatencyMs float64

	// Err is nil on success and on plain timeouts. ErrTransmitFailed
	// and ErrTimeExceeded surface send failures and router reports.
	Err error

	// Cumulative counters since the target was added.
	Sent     uint64
	Received uint64
	Dropped  uint64
}

// TimedOut reports whether the latest round ended without a reply.
func (v ResultView) TimedOut() bool { return v.LatencyMs < 0 }

// Loss returns the cumulative packet loss percentage.
func (v ResultView) Loss() float64 {
	if v.Sent == 0 {
		return 0
	}
	return float64(v.Sent-v.Received) / float64(v.Sent) * 100
}

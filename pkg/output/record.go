package output

import (
	"time"

	"github.com/velemoonkon/thunder/pkg/ping"
)

// Record is one target's outcome for one round, flattened for
// line-oriented and columnar output.
type Record struct {
	Time     string  `json:"time" parquet:"time,zstd"`
	Host     string  `json:"host" parquet:"host,zstd,dict"`
	Address  string  `json:"address" parquet:"address,zstd,dict"`
	Seq      int32   `json:"seq" parquet:"seq"`
	TTL      int32   `json:"ttl,omitzero" parquet:"ttl"`
	RTTMs    float64 `json:"rtt_ms,omitzero" parquet:"rtt_ms"`
	TimedOut bool    `json:"timed_out" parquet:"timed_out"`
	Error    string  `json:"error,omitzero" parquet:"error,zstd,dict"`

	// Cumulative counters since the host was added
	Sent     int64   `json:"sent" parquet:"sent"`
	Received int64   `json:"received" parquet:"received"`
	Dropped  int64   `json:"dropped" parquet:"dropped"`
	LossPct  float64 `json:"loss_pct" parquet:"loss_pct"`
}

// FromView flattens a round result snapshot into a Record.
func FromView(at time.Time, v ping.ResultView) Record {
	rec := Record{
		Time:     at.UTC().Format(time.RFC3339Nano),
		Host:     v.UserName,
		Address:  v.Address,
		Seq:      int32(v.Seq),
		TTL:      int32(v.TTL),
		TimedOut: v.TimedOut(),
		Sent:     int64(v.Sent),
		Received: int64(v.Received),
		Dropped:  int64(v.Dropped),
		LossPct:  v.Loss(),
	}
	if !v.TimedOut() {
		rec.RTTMs = v.LatencyMs
	}
	if v.Err != nil {
		rec.Error = v.Err.Error()
	}
	return rec
}

// Writer is the sink side of the monitor loop: one Record per target
// per round, Close to finalize.
type Writer interface {
	Write(rec Record) error
	Close() error
}

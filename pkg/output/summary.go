package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// SummaryWriter accumulates records across rounds and renders a
// ping(8)-style per-host report on Close. Per-round lines go out
// immediately; the statistics block comes last.
type SummaryWriter struct {
	writer *bufio.Writer
	hosts  map[string]*hostAggregate
	order  []string
	quiet  bool // suppress per-round lines, keep the final report
}

type hostAggregate struct {
	address  string
	sent     int64
	received int64
	min      float64
	max      float64
	sum      float64
	samples  int64
}

// NewSummaryWriter writes to the given file ("-" or "" for stdout).
// With quiet set, only the final statistics block is printed.
func NewSummaryWriter(filename string, quiet bool) (*SummaryWriter, error) {
	out := io.Writer(os.Stdout)
	if filename != "-" && filename != "" {
		file, err := os.Create(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		out = file
	}
	return NewSummaryWriterFromWriter(out, quiet), nil
}

// NewSummaryWriterFromWriter builds a summary writer over any
// io.Writer, used by tests
func NewSummaryWriterFromWriter(w io.Writer, quiet bool) *SummaryWriter {
	return &SummaryWriter{
		writer: bufio.NewWriter(w),
		hosts:  make(map[string]*hostAggregate),
		quiet:  quiet,
	}
}

// Write records one round outcome and prints its per-round line
func (w *SummaryWriter) Write(rec Record) error {
	agg, ok := w.hosts[rec.Host]
	if !ok {
		agg = &hostAggregate{address: rec.Address, min: -1}
		w.hosts[rec.Host] = agg
		w.order = append(w.order, rec.Host)
	}
	agg.sent = rec.Sent
	agg.received = rec.Received
	if rec.Address != "" {
		agg.address = rec.Address
	}
	if !rec.TimedOut {
		agg.samples++
		agg.sum += rec.RTTMs
		if agg.min < 0 || rec.RTTMs < agg.min {
			agg.min = rec.RTTMs
		}
		if rec.RTTMs > agg.max {
			agg.max = rec.RTTMs
		}
	}

	if w.quiet {
		return nil
	}
	return w.writeLine(rec)
}

func (w *SummaryWriter) writeLine(rec Record) error {
	var line string
	switch {
	case rec.Error != "":
		line = fmt.Sprintf("from %s icmp_seq=%d %s\n", rec.Address, rec.Seq, rec.Error)
	case rec.TimedOut:
		line = fmt.Sprintf("no answer from %s (%s) icmp_seq=%d\n", rec.Host, rec.Address, rec.Seq)
	default:
		line = fmt.Sprintf("reply from %s (%s): icmp_seq=%d ttl=%d time=%.3f ms\n",
			rec.Host, rec.Address, rec.Seq, rec.TTL, rec.RTTMs)
	}
	if _, err := w.writer.WriteString(line); err != nil {
		return err
	}
	return w.writer.Flush()
}

// Close renders the per-host statistics blocks, in the order hosts
// first appeared, and flushes
func (w *SummaryWriter) Close() error {
	for _, host := range w.order {
		agg := w.hosts[host]
		loss := 0.0
		if agg.sent > 0 {
			loss = float64(agg.sent-agg.received) / float64(agg.sent) * 100
		}
		fmt.Fprintf(w.writer, "\n--- %s ping statistics ---\n", host)
		fmt.Fprintf(w.writer, "%d transmitted, %d received, %.1f%% loss\n",
			agg.sent, agg.received, loss)
		if agg.samples > 0 {
			fmt.Fprintf(w.writer, "rtt min/avg/max = %.3f/%.3f/%.3f ms\n",
				agg.min, agg.sum/float64(agg.samples), agg.max)
		}
	}
	return w.writer.Flush()
}

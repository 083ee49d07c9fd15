package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/velemoonkon/thunder/pkg/config"
	"github.com/velemoonkon/thunder/pkg/input"
	"github.com/velemoonkon/thunder/pkg/monitor"
	"github.com/velemoonkon/thunder/pkg/output"
	"github.com/velemoonkon/thunder/pkg/ping"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	// Input
	inputFile string

	// Schedule
	count    int
	interval time.Duration
	timeout  time.Duration

	// Engine
	payloadSize int
	ttl         int
	sendRate    int
	source      string
	privileged  bool
	useUDP      bool

	// Output
	outputFile   string
	outputFormat string

	// Logging
	quiet   bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "thunder [flags] <host>...",
	Short: "Concurrent ICMP echo monitor",
	Long: `Thunder - Ping many hosts at once

Sends one ICMP echo per tracked host per round over shared sockets
(IPv4 and IPv6), matches replies by sequence and source address, and
reports per-host latency, TTL and loss.

Output formats:
  • summary (default) - ping(8)-style lines plus final statistics
  • JSONL - streaming, pipe to jq
  • Parquet - columnar, query with DuckDB`,

	Example: `  # Ping a few hosts, 4 rounds
  thunder 1.1.1.1 8.8.8.8 example.com

  # Raw sockets (requires root), run until interrupted
  sudo thunder --privileged -c -1 10.0.0.1

  # One round per 200ms with a 500ms reply deadline
  thunder -i 200ms -t 500ms 192.168.1.0/29

  # JSONL stream to jq
  thunder --format jsonl 8.8.8.8 | jq .rtt_ms

  # Parquet for analytics
  thunder --format parquet -o pings.parquet -c 100 -f targets.txt`,

	Args: func(cmd *cobra.Command, args []string) error {
		if inputFile == "" && len(args) == 0 {
			return fmt.Errorf("requires host(s) or -f/--file")
		}
		return nil
	},
	RunE:          runPing,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("thunder %s (commit: %s, built: %s)\n", version, commit, date))

	f := rootCmd.Flags()

	// Input
	f.StringVarP(&inputFile, "file", "f", "", "Read hosts from file (one per line)")

	// Schedule
	f.IntVarP(&count, "count", "c", 0, "Rounds to run (-1 = until interrupted)")
	f.DurationVarP(&interval, "interval", "i", 0, "Pacing between round starts")
	f.DurationVarP(&timeout, "timeout", "t", 0, "Per-round reply deadline")

	// Engine
	f.IntVarP(&payloadSize, "size", "s", 0, "Echo payload size in bytes")
	f.IntVar(&ttl, "ttl", 0, "Outbound TTL/hop limit (0 = OS default)")
	f.IntVarP(&sendRate, "rate", "r", 0, "Max echoes/second within a round (0 = unlimited)")
	f.StringVar(&source, "source", "", "Source address to bind")
	f.BoolVar(&privileged, "privileged", false, "Use raw sockets (requires root)")
	f.BoolVar(&useUDP, "udp", false, "Use datagram ICMP sockets (no root needed)")

	// Output
	f.StringVarP(&outputFile, "output", "o", "-", "Output file (- for stdout)")
	f.StringVar(&outputFormat, "format", "", "Output format: summary, jsonl, parquet")

	// Logging
	f.BoolVarP(&quiet, "quiet", "q", false, "Only errors and the final report")
	f.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

func runPing(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt: the current round notices the cancelled
	// context at its next poll iteration and expires what's left
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("stopping...")
		cancel()
	}()

	hosts, err := parseHosts(args)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return fmt.Errorf("no valid hosts found")
	}

	engineCfg, schedCfg := ResolveRoundConfig(RoundFlags{
		Count:       count,
		Interval:    interval,
		Timeout:     timeout,
		PayloadSize: payloadSize,
		TTL:         ttl,
		Rate:        sendRate,
		Source:      source,
		Privileged:  privileged,
		UseUDP:      useUDP,
	})

	session, err := ping.NewSession(engineCfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer session.Close()

	for _, host := range hosts {
		if err := session.AddHost(ctx, host); err != nil {
			if errors.Is(err, ping.ErrDuplicateHost) {
				slog.Debug("skipping duplicate", "host", host)
				continue
			}
			slog.Warn("skipping host", "host", host, "error", err)
		}
	}
	if session.Count() == 0 {
		return fmt.Errorf("no hosts could be added")
	}

	writer, err := createOutputWriter()
	if err != nil {
		return err
	}

	slog.Info("starting", "hosts", session.Count(), "rounds", schedCfg.Count)
	startTime := time.Now()

	runErr := monitor.New(session, schedCfg, writer).Run(ctx)
	if closeErr := writer.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	slog.Info("done", "duration", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func parseHosts(args []string) ([]string, error) {
	if inputFile != "" {
		slog.Debug("reading hosts", "file", inputFile)
		return input.ParseFile(inputFile)
	}
	return input.ParseTargets(args)
}

func createOutputWriter() (output.Writer, error) {
	format := strings.ToLower(outputFormat)
	if format == "" {
		format = strings.ToLower(config.Output.DefaultFormat)
	}

	switch format {
	case "parquet":
		if outputFile == "-" {
			return nil, fmt.Errorf("parquet cannot write to stdout, use -o file.parquet")
		}
		pw, err := output.NewParquetWriter(outputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create parquet writer: %w", err)
		}
		return pw, nil

	case "jsonl":
		jw, err := output.NewJSONLWriter(outputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create writer: %w", err)
		}
		return jw, nil

	case "summary":
		return output.NewSummaryWriter(outputFile, quiet)

	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

func initLogger() {
	var level slog.Level
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	config.Init()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

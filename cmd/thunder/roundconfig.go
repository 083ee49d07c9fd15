package main

import (
	"time"

	"github.com/velemoonkon/thunder/pkg/config"
	"github.com/velemoonkon/thunder/pkg/monitor"
	"github.com/velemoonkon/thunder/pkg/ping"
)

// RoundFlags represents the CLI flags that shape engine and schedule
// configuration
type RoundFlags struct {
	// Schedule
	Count    int
	Interval time.Duration
	Timeout  time.Duration

	// Engine
	PayloadSize int
	TTL         int
	Rate        int
	Source      string

	// Socket mode
	Privileged bool
	UseUDP     bool
}

// ResolveRoundConfig resolves CLI flags into engine and monitor
// configuration, falling back to environment-backed defaults for
// anything left unset
func ResolveRoundConfig(flags RoundFlags) (ping.Config, monitor.Config) {
	engine := ping.DefaultConfig()
	engine.PayloadSize = config.Engine.PayloadSize
	engine.PollGranularity = config.Engine.PollGranularity
	engine.SendRate = config.Engine.SendRate

	if flags.PayloadSize > 0 {
		engine.PayloadSize = flags.PayloadSize
	}
	if flags.TTL > 0 {
		engine.TTL = flags.TTL
	}
	if flags.Rate > 0 {
		engine.SendRate = flags.Rate
	}
	engine.Source = flags.Source

	// --udp wins over --privileged, same precedence the env default
	// gets: an explicit socket mode flag beats THUNDER_PRIVILEGED
	engine.Privileged = (flags.Privileged || config.Engine.Privileged) && !flags.UseUDP

	sched := monitor.DefaultConfig()
	if flags.Count != 0 {
		sched.Count = flags.Count
	}
	if flags.Count < 0 {
		sched.Count = 0 // run until interrupted
	}
	if flags.Interval > 0 {
		sched.Interval = flags.Interval
	}
	if flags.Timeout > 0 {
		sched.Timeout = flags.Timeout
	}

	return engine, sched
}

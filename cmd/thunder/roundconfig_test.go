package main

import (
	"os"
	"testing"
	"time"

	"github.com/velemoonkon/thunder/pkg/config"
)

func TestResolveRoundConfig_Defaults(t *testing.T) {
	// Default run: thunder <host>
	engine, sched := ResolveRoundConfig(RoundFlags{})

	if engine.PayloadSize != 56 {
		t.Errorf("Expected payload 56, got %d", engine.PayloadSize)
	}
	if engine.PollGranularity != 100*time.Millisecond {
		t.Errorf("Expected granularity 100ms, got %v", engine.PollGranularity)
	}
	if engine.Privileged {
		t.Error("Sockets should be unprivileged by default")
	}
	if sched.Count != 4 {
		t.Errorf("Expected 4 rounds, got %d", sched.Count)
	}
	if sched.Interval != time.Second {
		t.Errorf("Expected 1s interval, got %v", sched.Interval)
	}
	if sched.Timeout != 2*time.Second {
		t.Errorf("Expected 2s timeout, got %v", sched.Timeout)
	}
}

func TestResolveRoundConfig_EngineFlags(t *testing.T) {
	// thunder <host> -s 120 --ttl 10 -r 100 --source 10.0.0.5
	flags := RoundFlags{
		PayloadSize: 120,
		TTL:         10,
		Rate:        100,
		Source:      "10.0.0.5",
	}

	engine, _ := ResolveRoundConfig(flags)

	if engine.PayloadSize != 120 {
		t.Errorf("Expected payload 120, got %d", engine.PayloadSize)
	}
	if engine.TTL != 10 {
		t.Errorf("Expected TTL 10, got %d", engine.TTL)
	}
	if engine.SendRate != 100 {
		t.Errorf("Expected send rate 100, got %d", engine.SendRate)
	}
	if engine.Source != "10.0.0.5" {
		t.Errorf("Expected source 10.0.0.5, got %s", engine.Source)
	}
}

func TestResolveRoundConfig_ScheduleFlags(t *testing.T) {
	// thunder <host> -c 10 -i 200ms -t 500ms
	flags := RoundFlags{
		Count:    10,
		Interval: 200 * time.Millisecond,
		Timeout:  500 * time.Millisecond,
	}

	_, sched := ResolveRoundConfig(flags)

	if sched.Count != 10 {
		t.Errorf("Expected 10 rounds, got %d", sched.Count)
	}
	if sched.Interval != 200*time.Millisecond {
		t.Errorf("Expected 200ms interval, got %v", sched.Interval)
	}
	if sched.Timeout != 500*time.Millisecond {
		t.Errorf("Expected 500ms timeout, got %v", sched.Timeout)
	}
}

func TestResolveRoundConfig_NegativeCountRunsForever(t *testing.T) {
	// thunder <host> -c -1
	_, sched := ResolveRoundConfig(RoundFlags{Count: -1})

	if sched.Count != 0 {
		t.Errorf("Expected count 0 (forever), got %d", sched.Count)
	}
}

func TestResolveRoundConfig_Privileged(t *testing.T) {
	// thunder <host> --privileged
	engine, _ := ResolveRoundConfig(RoundFlags{Privileged: true})

	if !engine.Privileged {
		t.Error("Expected raw ICMP sockets with --privileged")
	}
}

func TestResolveRoundConfig_UDPWinsOverPrivileged(t *testing.T) {
	// thunder <host> --privileged --udp
	engine, _ := ResolveRoundConfig(RoundFlags{Privileged: true, UseUDP: true})

	if engine.Privileged {
		t.Error("Expected --udp to force datagram sockets over --privileged")
	}
}

func TestResolveRoundConfig_EnvPrivileged(t *testing.T) {
	// THUNDER_PRIVILEGED=1 thunder <host> --udp
	t.Setenv("THUNDER_PRIVILEGED", "1")
	config.Init()
	defer func() {
		os.Unsetenv("THUNDER_PRIVILEGED")
		config.Init()
	}()

	engine, _ := ResolveRoundConfig(RoundFlags{UseUDP: true})
	if engine.Privileged {
		t.Error("Expected --udp to override THUNDER_PRIVILEGED")
	}

	engine, _ = ResolveRoundConfig(RoundFlags{})
	if !engine.Privileged {
		t.Error("Expected THUNDER_PRIVILEGED=1 to enable raw sockets")
	}
}

package input

import (
	"bufio"
	"fmt"
	"iter"
	"net/netip"
	"os"
	"strings"
)

// Guard against accidentally expanding a huge prefix into a target
// list (a /16 is already 65536 monitored hosts).
const maxCIDRHosts = 1 << 16

// ParseTargets parses command-line targets (hostnames, IPs, CIDRs,
// comma-separated). Hostnames pass through verbatim for the session
// resolver; CIDRs expand to individual addresses.
func ParseTargets(targets []string) ([]string, error) {
	var hosts []string

	for _, target := range targets {
		// Handle comma-separated values
		for part := range strings.SplitSeq(target, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			expanded, err := expandTarget(part)
			if err != nil {
				return nil, err
			}
			hosts = append(hosts, expanded...)
		}
	}

	return hosts, nil
}

// ParseFile reads targets from a file (one per line, # comments)
func ParseFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var hosts []string
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		expanded, err := expandTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		hosts = append(hosts, expanded...)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return hosts, nil
}

// expandTarget turns one target token into host strings. Anything
// that is neither a CIDR nor an IP literal is treated as a hostname;
// the resolver decides later whether it is real.
func expandTarget(target string) ([]string, error) {
	if strings.Contains(target, "/") {
		return ExpandCIDR(target)
	}
	if addr, err := netip.ParseAddr(target); err == nil {
		return []string{addr.Unmap().String()}, nil
	}
	if !validHostname(target) {
		return nil, fmt.Errorf("invalid target: %s", target)
	}
	return []string{target}, nil
}

// AddrRange returns an iterator over the addresses in a CIDR range.
// This enables lazy evaluation without allocating the full slice.
// Example: for addr := range input.AddrRange("192.168.1.0/24") { ... }
func AddrRange(cidr string) (iter.Seq[netip.Addr], error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	prefix = prefix.Masked()

	return func(yield func(netip.Addr) bool) {
		for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
			if !yield(addr) {
				return
			}
		}
	}, nil
}

// ExpandCIDR expands a CIDR range into individual host strings.
// For streaming use cases, prefer AddrRange() to avoid allocating
// the full slice.
func ExpandCIDR(cidr string) ([]string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	if count := prefixSize(prefix); count > maxCIDRHosts {
		return nil, fmt.Errorf("CIDR %s expands to %d hosts (limit %d)", cidr, count, maxCIDRHosts)
	}

	seq, err := AddrRange(cidr)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for addr := range seq {
		hosts = append(hosts, addr.Unmap().String())
	}
	return hosts, nil
}

// prefixSize returns the number of addresses a prefix covers, capped
// to avoid overflow on wide v6 prefixes.
func prefixSize(prefix netip.Prefix) int {
	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits >= 63 {
		return int(^uint(0) >> 1)
	}
	return 1 << hostBits
}

// validHostname applies a loose RFC 952/1123 shape check; full
// validation is the resolver's job.
func validHostname(name string) bool {
	if len(name) == 0 || len(name) > 253 {
		return false
	}
	for label := range strings.SplitSeq(strings.TrimSuffix(name, "."), ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			case c == '-' && i != 0 && i != len(label)-1:
			default:
				return false
			}
		}
	}
	return true
}

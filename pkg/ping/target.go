package ping

import "net/netip"

// Family selects the IP address family of a target and its socket.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "ipv6"
	}
	return "ipv4"
}

// familyOf maps an address to its family. 4-in-6 mapped addresses are
// expected to be unmapped before this is called.
func familyOf(addr netip.Addr) Family {
	if addr.Is4() {
		return FamilyV4
	}
	return FamilyV6
}

// Target identifies one monitored endpoint. Targets are unique per
// session by resolved address and immutable once added.
type Target struct {
	// UserName is the string the caller supplied to AddHost,
	// preserved verbatim (hostname or IP literal).
	UserName string

	// Addr is the resolved, unmapped IP address.
	Addr netip.Addr

	Family Family
}

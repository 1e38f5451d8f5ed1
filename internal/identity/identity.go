// Package identity implements the peer directory (§2 #1) and the
// AEM<->IP mapping (§6.4, §4.8). Both mapping functions are pure:
// they depend only on the configured subnet and the AEM's value, never
// on mutable node state.
package identity

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// AEM is a node's 32-bit identity. Canonical textual form is four
// zero-padded decimal digits.
type AEM uint32

func (a AEM) String() string {
	return fmt.Sprintf("%04d", uint32(a))
}

// Entry names a peer's position in the directory. Index is -1 for an
// AEM the directory does not recognize; such a peer is forbidden from
// participating in the session protocol (§3 Directory Entry).
type Entry struct {
	AEM   AEM
	Index int
}

// Known reports whether this entry resolved to a directory slot.
func (e Entry) Known() bool {
	return e.Index >= 0
}

// AEM2IP computes the IPv4 address assigned to aem under subnet, a
// dotted two-octet prefix such as "10.0". The low 16 bits of aem become
// the remaining two octets.
func AEM2IP(subnet string, aem AEM) string {
	return fmt.Sprintf("%s.%d.%d", subnet, (uint32(aem)>>8)&0xff, uint32(aem)&0xff)
}

// IP2AEM inverts AEM2IP: it recovers the AEM encoded in the low two
// octets of ip, provided ip carries the configured subnet prefix.
func IP2AEM(subnet string, ip string) (AEM, error) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("identity: malformed IPv4 address %q", ip)
	}
	if strings.Join(parts[:len(parts)-2], ".") != subnet {
		return 0, fmt.Errorf("identity: address %q is not in subnet %q", ip, subnet)
	}
	hi, err := strconv.ParseUint(parts[len(parts)-2], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("identity: bad octet in %q: %w", ip, err)
	}
	lo, err := strconv.ParseUint(parts[len(parts)-1], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("identity: bad octet in %q: %w", ip, err)
	}
	return AEM(hi<<8 | lo), nil
}

// Directory is the read-only, dense peer list. It is built once at
// startup and never mutated afterward (§2 #1).
type Directory struct {
	subnet  string
	entries []AEM
	index   map[AEM]int
}

// NewFromList builds a directory from an explicit AEM list
// (PEER_SOURCE=list). The index in the resulting directory is the
// position in aems.
func NewFromList(subnet string, aems []AEM) *Directory {
	d := &Directory{
		subnet:  subnet,
		entries: append([]AEM(nil), aems...),
		index:   make(map[AEM]int, len(aems)),
	}
	for i, a := range d.entries {
		d.index[a] = i
	}
	return d
}

// NewFromRange builds a directory from a contiguous AEM range
// (PEER_SOURCE=range): min, min+1, ..., min+length-1.
func NewFromRange(subnet string, min AEM, length int) *Directory {
	aems := make([]AEM, length)
	for i := 0; i < length; i++ {
		aems[i] = min + AEM(i)
	}
	return NewFromList(subnet, aems)
}

// Len reports the directory's size - the dense index space.
func (d *Directory) Len() int {
	return len(d.entries)
}

// ByIndex returns the AEM at directory position i.
func (d *Directory) ByIndex(i int) AEM {
	return d.entries[i]
}

// Lookup resolves aem to its directory entry. An unknown AEM yields
// Index -1.
func (d *Directory) Lookup(aem AEM) Entry {
	if i, ok := d.index[aem]; ok {
		return Entry{AEM: aem, Index: i}
	}
	return Entry{AEM: aem, Index: -1}
}

// AEM2IP resolves aem to an address under this directory's subnet.
func (d *Directory) AEM2IP(aem AEM) string {
	return AEM2IP(d.subnet, aem)
}

// ResolveIP reverse-maps a remote IP (as seen on an accepted
// connection) back to a directory entry, per §6.4.
func (d *Directory) ResolveIP(ip string) Entry {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	aem, err := IP2AEM(d.subnet, ip)
	if err != nil {
		return Entry{Index: -1}
	}
	return d.Lookup(aem)
}

package scans

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// ipHashLength is the number of hex characters kept from the keyed hash.
const ipHashLength = 16

// ClientIP extracts the originating address from a forwarded-IP header
// chain: the first comma-separated entry, trimmed. Returns UnknownIP when
// the chain is empty.
func ClientIP(forwardedFor string) string {
	first := forwardedFor
	if idx := strings.Index(forwardedFor, ","); idx != -1 {
		first = forwardedFor[:idx]
	}
	first = strings.TrimSpace(first)
	if first == "" {
		return UnknownIP
	}
	return first
}

// HashIP anonymizes an address with a keyed one-way hash truncated to a
// fixed short length. The raw IP is never persisted.
func HashIP(ip, key string) string {
	sum := sha256.Sum256([]byte(key + "." + ip))
	return hex.EncodeToString(sum[:])[:ipHashLength]
}

var privateIPBlocks = []*net.IPNet{
	parseCIDR("10.0.0.0/8"),     // RFC 1918
	parseCIDR("172.16.0.0/12"),  // RFC 1918
	parseCIDR("192.168.0.0/16"), // RFC 1918
	parseCIDR("fc00::/7"),       // RFC 4193 Unique Local Addresses
	parseCIDR("fe80::/10"),      // RFC 4291 Link-Local
	parseCIDR("::1/128"),        // Loopback
	parseCIDR("127.0.0.0/8"),    // Loopback
}

func parseCIDR(s string) *net.IPNet {
	_, block, _ := net.ParseCIDR(s)
	return block
}

// IsRoutableIP reports whether raw parses as a public, non-loopback address.
// Only routable addresses are worth an external geo lookup.
func IsRoutableIP(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}

	for _, block := range privateIPBlocks {
		candidate := ip

		switch len(block.IP) {
		case net.IPv4len:
			if ip4 := ip.To4(); ip4 != nil {
				candidate = ip4
			} else {
				continue
			}
		case net.IPv6len:
			candidate = ip.To16()
			if candidate == nil {
				continue
			}
		}

		if block.Contains(candidate) {
			return false
		}
	}
	return true
}

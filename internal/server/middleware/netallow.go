package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// NetworkAllowList matches client addresses against configured CIDRs.
type NetworkAllowList struct {
	v4 *ipaddr.IPv4AddressTrie
	v6 *ipaddr.IPv6AddressTrie
}

// NewNetworkAllowList parses networks ("10.0.0.0/8", "::1/128", or a bare
// address). Any unparsable entry is an error.
func NewNetworkAllowList(networks []string) (*NetworkAllowList, error) {
	list := &NetworkAllowList{
		v4: &ipaddr.IPv4AddressTrie{},
		v6: &ipaddr.IPv6AddressTrie{},
	}

	for _, network := range networks {
		network = strings.TrimSpace(network)
		if network == "" {
			continue
		}
		address, err := ipaddr.NewIPAddressString(network).ToAddress()
		if err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", network, err)
		}
		if address == nil {
			return nil, fmt.Errorf("invalid network %q", network)
		}

		// Zero host bits so "10.1.2.3/8" covers the same block as "10.0.0.0/8".
		if address.IsPrefixed() {
			address = address.ToPrefixBlock()
		}

		switch {
		case address.IsIPv4():
			list.v4.Add(address.ToIPv4())
		case address.IsIPv6():
			list.v6.Add(address.ToIPv6())
		}
	}

	return list, nil
}

// Contains reports whether ip falls inside any configured network.
func (l *NetworkAllowList) Contains(ip string) bool {
	if l == nil {
		return false
	}

	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	// IPv4-mapped IPv6 clients match IPv4 rules.
	if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
		ip = parsed.To4().String()
	}

	address, err := ipaddr.NewIPAddressString(ip).ToAddress()
	if err != nil || address == nil {
		return false
	}

	switch {
	case address.IsIPv4():
		return l.v4.ElementContains(address.ToIPv4())
	case address.IsIPv6():
		return l.v6.ElementContains(address.ToIPv6())
	}
	return false
}

// Restrict rejects requests whose resolved peer address (r.RemoteAddr) is
// outside the allow-list. Forwarding headers only matter when an earlier
// middleware such as chi's RealIP has already rewritten RemoteAddr.
func (l *NetworkAllowList) Restrict(deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Contains(remoteIP(r)) {
				if deny != nil {
					deny(w, r)
				} else {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package config

import (
	"net"
	"strconv"
)

// LocalURL is the relay address as seen from this machine.
func (s ServerConfig) LocalURL() string {
	return "http://" + net.JoinHostPort("localhost", strconv.Itoa(s.Port))
}

// NetworkURL is the relay address other machines on the LAN can open. It is
// empty when the relay listens on a wildcard address and no non-loopback IPv4
// address is available.
func (s ServerConfig) NetworkURL() string {
	host := s.Host
	if isWildcard(host) {
		addrs, err := net.InterfaceAddrs()
		if err != nil {
			return ""
		}
		host = firstLANIPv4(addrs)
	}
	if host == "" {
		return ""
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

func isWildcard(host string) bool {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		return true
	}
	return false
}

// firstLANIPv4 returns the first IPv4 address that is not loopback.
func firstLANIPv4(addrs []net.Addr) string {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4.String()
		}
	}
	return ""
}

package config

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstLANIPv4(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPAddr{IP: net.ParseIP("192.168.1.23")},
		&net.IPNet{IP: net.ParseIP("10.0.0.5"), Mask: net.CIDRMask(8, 32)},
	}
	assert.Equal(t, "192.168.1.23", firstLANIPv4(addrs))

	assert.Empty(t, firstLANIPv4([]net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
	}))
	assert.Empty(t, firstLANIPv4(nil))
}

func TestServerURLs(t *testing.T) {
	s := ServerConfig{Host: "192.168.1.23", Port: 3000}
	assert.Equal(t, "http://localhost:3000", s.LocalURL())
	assert.Equal(t, "http://192.168.1.23:3000", s.NetworkURL())

	assert.True(t, isWildcard("0.0.0.0"))
	assert.True(t, isWildcard(""))
	assert.False(t, isWildcard("relay.internal"))
}

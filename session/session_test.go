package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountUsableIPv4ExcludesLoopbackAndIPv6(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
		&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
	}
	assert.Equal(t, 1, countUsableIPv4(addrs))
}

func TestCountUsableIPv4CountsEachAddress(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("10.0.0.1"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("10.0.0.2"), Mask: net.CIDRMask(24, 32)},
	}
	assert.Equal(t, 2, countUsableIPv4(addrs))
}

func TestAbs32(t *testing.T) {
	assert.Equal(t, int32(5), abs32(-5))
	assert.Equal(t, int32(5), abs32(5))
	assert.Equal(t, int32(0), abs32(0))
}

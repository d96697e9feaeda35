package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain ipv4", "1.2.3.4", "1.2.3.4", false},
		{"whitespace trimmed", "  1.2.3.4\n", "1.2.3.4", false},
		{"ipv4 with port", "1.2.3.4:8080", "1.2.3.4", false},
		{"4-in-6 mapped", "::ffff:1.2.3.4", "1.2.3.4", false},
		{"ipv6 compressed", "2001:db8:0:0:0:0:0:1", "2001:db8::1", false},
		{"ipv6 uppercase", "2001:DB8::1", "2001:db8::1", false},
		{"ipv6 bracketed with port", "[2001:db8::1]:443", "2001:db8::1", false},
		{"empty", "", "", true},
		{"garbage", "not-an-ip", "", true},
		{"out of range octet", "1.2.3.256", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIP(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsPublicIP(t *testing.T) {
	public := []string{"1.2.3.4", "8.8.8.8", "2001:db8::1", "203.0.113.9"}
	for _, s := range public {
		assert.True(t, IsPublicIP(net.ParseIP(s)), "%s should be public", s)
	}

	private := []string{
		"127.0.0.1", "::1",
		"10.0.0.5", "172.16.0.1", "192.168.1.1",
		"169.254.1.1", "fe80::1",
		"0.0.0.0", "::",
		"224.0.0.1",
	}
	for _, s := range private {
		assert.False(t, IsPublicIP(net.ParseIP(s)), "%s should not be public", s)
	}

	assert.False(t, IsPublicIP(nil))
}

func TestResolveClientIP_HintWins(t *testing.T) {
	addr, err := ResolveClientIP("1.2.3.4", "5.6.7.8")
	assert.NoError(t, err)
	assert.Equal(t, "1.2.3.4", addr)
}

func TestResolveClientIP_InvalidHintIsError(t *testing.T) {
	_, err := ResolveClientIP("not-an-ip", "5.6.7.8")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIPUnavailable)
}

func TestResolveClientIP_RemoteFallback(t *testing.T) {
	addr, err := ResolveClientIP("", "5.6.7.8")
	assert.NoError(t, err)
	assert.Equal(t, "5.6.7.8", addr)
}

func TestResolveClientIP_PrivateRemoteUnavailable(t *testing.T) {
	for _, remote := range []string{"10.0.0.5", "127.0.0.1", "192.168.1.7", "fe80::1", ""} {
		_, err := ResolveClientIP("", remote)
		assert.ErrorIs(t, err, ErrIPUnavailable, "remote %q", remote)
	}
}

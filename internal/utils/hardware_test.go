package utils

import (
	"net"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalIDPrefersConfiguredValue(t *testing.T) {
	assert.Equal(t, "TILL-2", TerminalID("  TILL-2 "))
}

func TestTerminalFromInterfaces(t *testing.T) {
	mac, _ := net.ParseMAC("00:1a:2b:3c:4d:5e")
	loop := net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback, HardwareAddr: mac}
	down := net.Interface{Name: "eth1", HardwareAddr: mac}
	up := net.Interface{Name: "eth0", Flags: net.FlagUp, HardwareAddr: mac}

	assert.Equal(t, unknownTerminal, terminalFromInterfaces(nil))
	assert.Equal(t, unknownTerminal, terminalFromInterfaces([]net.Interface{loop, down}))

	id := terminalFromInterfaces([]net.Interface{loop, down, up})
	assert.Regexp(t, regexp.MustCompile(`^POS-[0-9A-F]{8}$`), id)
	assert.Equal(t, id, hashTerminal(mac.String()), "stable for the same hardware")
}

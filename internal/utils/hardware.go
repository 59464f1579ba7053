package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

const unknownTerminal = "POS-UNKNOWN"

// TerminalID returns the configured id when set, otherwise one derived from
// the machine's first active MAC address, e.g. "POS-A1B2C3D4". Orders are
// stamped with it so sales can be traced to a till.
func TerminalID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	interfaces, err := net.Interfaces()
	if err != nil {
		return unknownTerminal
	}
	return terminalFromInterfaces(interfaces)
}

func terminalFromInterfaces(interfaces []net.Interface) string {
	var macAddress string
	for _, i := range interfaces {
		// first active physical interface
		if i.Flags&net.FlagUp != 0 && i.Flags&net.FlagLoopback == 0 && len(i.HardwareAddr) > 0 {
			macAddress = i.HardwareAddr.String()
			break
		}
	}
	if macAddress == "" {
		return unknownTerminal
	}
	return hashTerminal(macAddress)
}

func hashTerminal(mac string) string {
	hash := sha256.Sum256([]byte(mac + "PHARMACY-POS-SALT"))
	return "POS-" + strings.ToUpper(hex.EncodeToString(hash[:])[:8])
}

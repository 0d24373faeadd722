package shared

import (
	"fmt"
	"regexp"
	"strconv"

	"dominicbreuker/flexserve/pkg/config"
)

var transportRe = regexp.MustCompile(`^(tcp|kcp)://(\[[^\]]*\]|[^:\[\]]*):(\d+)$`)

// ParseTransport parses a transport string in the format "protocol://host:port"
// where protocol is one of tcp or kcp. The host can be empty or "*" to
// bind to all interfaces. IPv6 hosts go in brackets.
func ParseTransport(s string) (config.Transport, error) {
	var t config.Transport

	matches := transportRe.FindStringSubmatch(s)
	if len(matches) != 4 {
		return t, parsingError(s)
	}

	switch matches[1] {
	case "tcp":
		t.Protocol = config.ProtoTCP
	case "kcp":
		t.Protocol = config.ProtoKCP
	default:
		return t, parsingError(s)
	}

	t.Host = matches[2]
	if t.Host == "*" { // also counts as all interfaces
		t.Host = ""
	}
	if len(t.Host) >= 2 && t.Host[0] == '[' {
		t.Host = t.Host[1 : len(t.Host)-1]
	}

	port, err := strconv.Atoi(matches[3])
	if err != nil || port < 1 || port > 65535 {
		return t, parsingError(s)
	}
	t.Port = port

	return t, nil
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'protocol://host:port', where protocol = tcp|kcp", s)
}

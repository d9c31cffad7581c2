package device

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/radmon-relay/internal/monitoring"
)

var logf = monitoring.Scoped("device")

// ParseDecimal parses a base-10 CPM, ignoring surrounding whitespace.
// Empty, negative or non-numeric payloads report false.
func ParseDecimal(payload []byte) (int, bool) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return 0, false
	}
	cpm, err := strconv.Atoi(s)
	if err != nil || cpm < 0 {
		return 0, false
	}
	return cpm, true
}

// DecodeGMCCount decodes the two byte big-endian reply to <GETCPM>>.
func DecodeGMCCount(resp []byte) (int, error) {
	if len(resp) != 2 {
		return 0, fmt.Errorf("%w: expected 2 byte CPM response, got %d bytes", ErrProtocol, len(resp))
	}
	return int(binary.BigEndian.Uint16(resp)), nil
}

// ParseLastLine parses the newest line of CRLF terminated input. Input that
// does not end in CRLF reports false.
func ParseLastLine(data []byte) (int, bool) {
	s := string(data)
	if !strings.HasSuffix(s, "\r\n") {
		return 0, false
	}
	s = strings.TrimSuffix(s, "\r\n")
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	return ParseDecimal([]byte(s))
}

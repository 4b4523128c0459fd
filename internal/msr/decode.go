package msr

import (
	"strconv"
	"strings"
)

const (
	tjmaxMask   = 0xFF
	readoutMask = 0x7F
)

// parseRegister decodes a "0x"-prefixed hex dump as a signed 32-bit value.
func parseRegister(raw string) (int32, bool) {
	raw = strings.TrimSpace(raw)
	digits, ok := strings.CutPrefix(raw, "0x")
	if !ok || digits == "" {
		return 0, false
	}

	for _, r := range digits {
		if !isHexDigit(r) {
			return 0, false
		}
	}

	v, err := strconv.ParseInt(digits, 16, 32)
	if err != nil {
		return 0, false
	}

	return int32(v), true
}

func isHexDigit(r rune) bool {
	return ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

// decodeTjMax extracts bits 16..23 of the temperature target register.
func decodeTjMax(raw string) (int, bool) {
	v, ok := parseRegister(raw)
	if !ok {
		return 0, false
	}

	return int((v >> 16) & tjmaxMask), true
}

// decodeReadout extracts bits 16..22 of the thermal status register.
func decodeReadout(raw string) (int, bool) {
	v, ok := parseRegister(raw)
	if !ok {
		return 0, false
	}

	return int((v >> 16) & readoutMask), true
}

// topologyValue returns the integer after the first line whose label, the
// text before the first ':', equals label. Missing or non-numeric values are 0.
func topologyValue(info, label string) int {
	for _, line := range strings.Split(info, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 2 || strings.TrimSpace(parts[0]) != label {
			continue
		}

		v, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0
		}

		return v
	}

	return 0
}

// fieldValue returns the value of the first line whose lowercased text
// contains key, or "N/A" when there is none.
func fieldValue(info, key string) string {
	for _, line := range strings.Split(info, "\n") {
		if !strings.Contains(strings.ToLower(line), key) {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			return notAvailable
		}

		return strings.TrimSpace(parts[1])
	}

	return notAvailable
}

// parseCPUList turns a directory listing into cpu ids.
func parseCPUList(listing string) []string {
	var cpus []string
	for _, line := range strings.Split(listing, "\n") {
		cpu := strings.TrimRight(strings.TrimSpace(line), "/")
		if cpu != "" {
			cpus = append(cpus, cpu)
		}
	}

	return cpus
}

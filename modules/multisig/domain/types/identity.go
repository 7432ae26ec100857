package types

import "strings"

// Identity is a principal address: a board member, the roster authority or
// an execution target. Hex addresses are compared case-insensitively.
type Identity string

func NormalizeIdentity(raw string) Identity {
	raw = strings.TrimSpace(raw)
	if len(raw) > 2 && (raw[:2] == "0x" || raw[:2] == "0X") {
		return Identity("0x" + strings.ToLower(raw[2:]))
	}
	return Identity(raw)
}

// IsZero reports the empty identity, the bare "0x" prefix and the all-zero
// hex address.
func (id Identity) IsZero() bool {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return true
	}
	if len(s) < 2 || (s[:2] != "0x" && s[:2] != "0X") {
		return false
	}
	for i := 2; i < len(s); i++ {
		if s[i] != '0' {
			return false
		}
	}
	return true
}

func (id Identity) String() string { return string(id) }

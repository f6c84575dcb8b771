package domain

import "strings"

// TargetMode selects which part of the fleet a request addresses.
type TargetMode int

const (
	TargetLocal TargetMode = iota
	TargetHost
	TargetAll
)

// TargetAllToken selects the whole fleet.
const TargetAllToken = "all"

// Target is a resolved selection: the local engine, one registered host, or
// everything.
type Target struct {
	Mode TargetMode
	Host string
}

// ParseTarget reads a selection token. Empty and "local" mean the local
// engine; "all" means the fleet; anything else names a host address.
func ParseTarget(s string) Target {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "local":
		return Target{Mode: TargetLocal}
	case TargetAllToken:
		return Target{Mode: TargetAll}
	}
	return Target{Mode: TargetHost, Host: s}
}

func (t Target) String() string {
	switch t.Mode {
	case TargetAll:
		return TargetAllToken
	case TargetHost:
		return t.Host
	}
	return "local"
}

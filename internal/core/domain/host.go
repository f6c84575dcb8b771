package domain

import "fmt"

// DefaultSSHPort is applied when a host entry leaves the port unset.
const DefaultSSHPort = 22

// HostEntry is a remote host reachable over SSH. Host is the registry key.
type HostEntry struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	KeyPath  string `json:"key_path"`
}

// Normalize fills defaults and validates the entry.
func (h HostEntry) Normalize() (HostEntry, error) {
	if h.Port == 0 {
		h.Port = DefaultSSHPort
	}
	if h.Name == "" {
		h.Name = h.Host
	}
	switch {
	case h.Host == "":
		return h, fmt.Errorf("%w: host is required", ErrInvalidHost)
	case h.Username == "":
		return h, fmt.Errorf("%w: username is required", ErrInvalidHost)
	case h.KeyPath == "":
		return h, fmt.Errorf("%w: key_path is required", ErrInvalidHost)
	case h.Port < 1 || h.Port > 65535:
		return h, fmt.Errorf("%w: port %d out of range", ErrInvalidHost, h.Port)
	}
	return h, nil
}

// HostPatch carries the mutable fields of a HostEntry.
type HostPatch struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Port     int    `json:"port"`
	KeyPath  string `json:"key_path"`
}

// Apply returns a copy of h with every mutable field replaced by the patch.
func (p HostPatch) Apply(h HostEntry) HostEntry {
	h.Name = p.Name
	h.Username = p.Username
	h.Port = p.Port
	h.KeyPath = p.KeyPath
	return h
}

// HostSet is the result of a registry read. Degraded is set when the
// persisted store was missing or unreadable; Entries is then empty and
// callers proceed as if no hosts were registered.
type HostSet struct {
	Entries  []HostEntry
	Degraded error
}

// Find returns the entry registered under host.
func (s HostSet) Find(host string) (HostEntry, bool) {
	for _, e := range s.Entries {
		if e.Host == host {
			return e, true
		}
	}
	return HostEntry{}, false
}

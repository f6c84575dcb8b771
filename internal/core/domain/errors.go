package domain

import "errors"

var (
	// ErrNotFound is returned when a container or registry entry does not exist
	ErrNotFound = errors.New("not found")

	// ErrHostNotFound is returned when a target host is not in the registry
	ErrHostNotFound = errors.New("host not found")

	// ErrDuplicateHost is returned when adding a host that is already registered
	ErrDuplicateHost = errors.New("host already registered")

	// ErrInvalidHost is returned when a host entry fails validation
	ErrInvalidHost = errors.New("invalid host entry")

	// ErrTransport is returned for any SSH connect, auth, exec or timeout failure
	ErrTransport = errors.New("transport failure")

	// ErrEngineUnavailable is returned when the local engine socket is unreachable
	ErrEngineUnavailable = errors.New("container engine unavailable")

	// ErrUnsupportedAction is returned for an action token outside start/stop/restart/remove
	ErrUnsupportedAction = errors.New("unsupported action")

	// ErrInvalidContainerID is returned for ids unsafe to pass to a remote shell
	ErrInvalidContainerID = errors.New("invalid container id")

	// ErrRegistryCorrupt is returned by mutations when the registry file cannot be parsed
	ErrRegistryCorrupt = errors.New("host registry is corrupt")

	// ErrUnauthenticated is returned when an operation carries no caller
	ErrUnauthenticated = errors.New("caller identity required")
)

// ErrCommandFailed is returned when a remote command reports output on stderr
var ErrCommandFailed = errors.New("remote command failed")

package domain

// Container states reported by the local engine. Remote hosts report the
// engine's human status text instead ("Up 2 minutes").
const (
	StatusCreated    = "created"
	StatusRunning    = "running"
	StatusPaused     = "paused"
	StatusExited     = "exited"
	StatusDead       = "dead"
	StatusRestarting = "restarting"
	StatusRemoving   = "removing"
	StatusError      = "error"
)

// NoImage is reported when a container's image carries no tag.
const NoImage = "none"

// ContainerRecord represents a container on one host of the fleet.
// Records are produced fresh on every inventory query.
type ContainerRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Image  string `json:"image"`
}

// ErrorRecord is the placeholder shown in place of a host's containers when
// its inventory could not be fetched. The failure message rides in Image.
func ErrorRecord(err error) ContainerRecord {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ContainerRecord{
		ID:     "-",
		Name:   "error",
		Status: StatusError,
		Image:  msg,
	}
}

// IsError reports whether the record is a placeholder for a failed fetch.
func (r ContainerRecord) IsError() bool {
	return r.ID == "-" && r.Status == StatusError
}

// FleetSnapshot is the inventory of a single target. ServerHost is nil for
// the local engine.
type FleetSnapshot struct {
	ServerName string            `json:"server_name"`
	ServerHost *string           `json:"server_host"`
	Containers []ContainerRecord `json:"containers"`
}

// Local reports whether the snapshot belongs to the local engine.
func (s FleetSnapshot) Local() bool {
	return s.ServerHost == nil
}

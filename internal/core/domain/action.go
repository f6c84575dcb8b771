package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Action is a container lifecycle operation.
type Action int

const (
	ActionStart Action = iota + 1
	ActionStop
	ActionRestart
	ActionRemove
)

var actionNames = map[Action]string{
	ActionStart:   "start",
	ActionStop:    "stop",
	ActionRestart: "restart",
	ActionRemove:  "remove",
}

// ParseAction maps a request token onto an Action.
func ParseAction(s string) (Action, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	for a, name := range actionNames {
		if name == token {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedAction, s)
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// Message levels, matching the categories an operator UI renders.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelInfo    = "info"
	LevelDanger  = "danger"
)

// Level is the message level used when the action succeeds.
func (a Action) Level() string {
	switch a {
	case ActionStart:
		return LevelSuccess
	case ActionStop:
		return LevelWarning
	case ActionRestart:
		return LevelInfo
	default:
		return LevelDanger
	}
}

// PastTense describes a completed action ("started", "removed").
func (a Action) PastTense() string {
	switch a {
	case ActionStart:
		return "started"
	case ActionStop:
		return "stopped"
	case ActionRestart:
		return "restarted"
	case ActionRemove:
		return "removed"
	}
	return "done"
}

var containerIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateContainerID rejects identifiers that are not plain container ids
// or names. Remote actions interpolate the id into a shell command line.
func ValidateContainerID(id string) error {
	if !containerIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidContainerID, id)
	}
	return nil
}

// ActionRequest asks for one action on one container. An empty Host
// targets the local engine.
type ActionRequest struct {
	ContainerID string `json:"container_id"`
	Action      string `json:"action"`
	Host        string `json:"host,omitempty"`
}

// ActionResult is the outcome of an ActionRequest. Err holds the
// classified failure for callers that map it to a status; it is not
// serialized.
type ActionResult struct {
	ContainerID string `json:"container_id"`
	Action      string `json:"action"`
	Host        string `json:"host,omitempty"`
	OK          bool   `json:"ok"`
	Level       string `json:"level"`
	Message     string `json:"message"`
	Err         error  `json:"-"`
}

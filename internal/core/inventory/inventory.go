// Package inventory holds the text contract between the fleet and remote
// Docker engines: the commands issued over SSH and the parser for their
// output.
package inventory

import (
	"fmt"
	"strings"

	"github.com/melih/fleetctl/internal/core/domain"
)

// Delimiter separates the fields of one listing line.
const Delimiter = "|"

// listFormat must stay in step with Parse: id, name, status, image.
const listFormat = "{{.ID}}" + Delimiter + "{{.Names}}" + Delimiter + "{{.Status}}" + Delimiter + "{{.Image}}"

// Commands builds remote command lines. Elevated prefixes each command with
// non-interactive sudo.
type Commands struct {
	Elevated bool
}

func (c Commands) prefix() string {
	if c.Elevated {
		return "sudo -n docker"
	}
	return "docker"
}

// List returns the command producing one "<id>|<name>|<status>|<image>"
// line per container, stopped ones included.
func (c Commands) List() string {
	return fmt.Sprintf("%s ps -a --format '%s'", c.prefix(), listFormat)
}

// Action returns the command for a lifecycle action. Remove is always
// forced. The id must already be validated with domain.ValidateContainerID.
func (c Commands) Action(action domain.Action, id string) (string, error) {
	if err := domain.ValidateContainerID(id); err != nil {
		return "", err
	}
	switch action {
	case domain.ActionStart, domain.ActionStop, domain.ActionRestart:
		return fmt.Sprintf("%s %s %s", c.prefix(), action, id), nil
	case domain.ActionRemove:
		return fmt.Sprintf("%s rm -f %s", c.prefix(), id), nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedAction, action)
}

// Parse turns listing output into records. Lines that do not split into
// exactly four fields are dropped; the number dropped is returned so the
// caller can report it.
func Parse(stdout string) (records []domain.ContainerRecord, dropped int) {
	records = []domain.ContainerRecord{}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, Delimiter)
		if len(fields) != 4 {
			dropped++
			continue
		}
		records = append(records, domain.ContainerRecord{
			ID:     fields[0],
			Name:   fields[1],
			Status: fields[2],
			Image:  fields[3],
		})
	}
	return records, dropped
}

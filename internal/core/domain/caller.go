package domain

// Caller identifies who issued an operation. Identity is established by an
// upstream collaborator; the core only requires that one is present.
type Caller struct {
	ID string
}

// Validate rejects anonymous callers.
func (c Caller) Validate() error {
	if c.ID == "" {
		return ErrUnauthenticated
	}
	return nil
}

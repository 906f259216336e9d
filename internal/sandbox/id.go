package sandbox

import "github.com/google/uuid"

// ID is a 128-bit opaque sandbox identifier, displayed as hex with dashes.
// It also names the per-sandbox working directory and the VM identifier
// passed to the hypervisor.
type ID string

// NewID generates a fresh random ID, never reused within the process.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

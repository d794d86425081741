package asynctask

import (
	"fmt"

	"github.com/rs/xid"
)

// ID uniquely identifies a Task, minted once at creation and stable for the
// task's lifetime. It wraps xid.ID the same way the teacher's asynctask.ID
// does, giving sortable, globally unique, allocation-free identifiers.
type ID xid.ID

func newID() ID { return ID(xid.New()) }

// String returns the canonical base32 text form of the ID.
func (id ID) String() string { return xid.ID(id).String() }

// IsZero reports whether id is the zero value (never assigned).
func (id ID) IsZero() bool { return xid.ID(id).IsZero() }

// ParseID parses the canonical base32 text form produced by ID.String.
func ParseID(s string) (ID, error) {
	x, err := xid.FromString(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrTaskNotFound, err)
	}
	return ID(x), nil
}

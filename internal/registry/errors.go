package registry

import "errors"

// The registry rejects invalid operations with a closed error taxonomy.
// Each value is a pure validation rejection: when one is returned, state is
// untouched. Infrastructure failures are wrapped separately and never alias
// these values.
var (
	// ErrNotAdmin is returned when a non-admin principal attempts an
	// admin-only mutation.
	ErrNotAdmin = errors.New("caller is not the registry admin")

	// ErrContentNotFound is returned when a referenced ContentID has no
	// record.
	ErrContentNotFound = errors.New("content not found")

	// ErrNotOwner is returned when a transfer is attempted by a principal
	// other than the record's current owner.
	ErrNotOwner = errors.New("caller is not the content owner")

	// ErrCounterOverflow is returned when allocating the next ContentID
	// would wrap the id space.
	ErrCounterOverflow = errors.New("content id counter overflow")

	// ErrInvalidContent is returned when a fingerprint fails the current
	// validation rule.
	ErrInvalidContent = errors.New("fingerprint rejected by validation rule")
)

package sweep

import "errors"

var (
	// ErrLengthMismatch is returned when pointwise combination is asked to zip
	// option lists of different lengths.
	ErrLengthMismatch = errors.New("option lists differ in length")

	// ErrEmptyChoice is returned when a choice has no options; expanding it
	// would silently drop a whole dimension of the sweep.
	ErrEmptyChoice = errors.New("choice has no options")

	// ErrDuplicateChoice is returned when two choices share a name.
	ErrDuplicateChoice = errors.New("duplicate choice name")

	// ErrMissingFragment is returned by Scheme accessors when the fragment was
	// never merged into the document.
	ErrMissingFragment = errors.New("missing fragment")

	// ErrMissingKey is returned when a fragment lacks a required field.
	ErrMissingKey = errors.New("missing key")

	// ErrBadValue is returned when a field holds a value of the wrong type.
	ErrBadValue = errors.New("unexpected value type")

	// ErrNoShortID is returned when a fragment contributing to the folder name
	// has neither an explicit short id nor a registered formatter.
	ErrNoShortID = errors.New("no short id")

	// ErrUnsafeShortID is returned for short ids that are empty or contain a
	// path separator.
	ErrUnsafeShortID = errors.New("short id is not filesystem safe")

	// ErrFolderCollision is returned when two schemes of one sweep map to the
	// same folder name.
	ErrFolderCollision = errors.New("folder name collision")
)

package corpus

import "errors"

var (
	// ErrOutputNotWritable is returned by Open when the corpus directory
	// cannot be created or written to.
	ErrOutputNotWritable = errors.New("output directory is not writable")

	// ErrInvalidDocument is returned by Save for documents without an ID or URL.
	ErrInvalidDocument = errors.New("invalid document")
)

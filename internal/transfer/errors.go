package transfer

import "errors"

var (
	// ErrSourceMissing means the claimed plot vanished before the copy.
	ErrSourceMissing = errors.New("source plot missing")
	// ErrDestinationInvalid means the destination is gone, not a directory, the
	// source directory itself, or already holds a different file of that name.
	ErrDestinationInvalid = errors.New("destination invalid")
	// ErrCopyFailed covers I/O errors while copying or reading back a copy.
	ErrCopyFailed = errors.New("copy failed")
	// ErrVerificationFailed means every attempt produced a mismatching copy.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrSourceRemoval means the copy verified but the source could not be
	// deleted. The verified copy is kept.
	ErrSourceRemoval = errors.New("remove source failed")
)

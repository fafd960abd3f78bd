// Package docstore implements the document collection engine: the codec
// between the legacy persisted shapes and the canonical in-memory collection,
// identity resolution for incoming document references, the per-document
// status state machine, and the aggregate compliance status derivation.
//
// The package is pure: it performs no I/O and never touches the record store.
// The service layer owns the read-modify-write cycle and calls into here with
// in-memory snapshots only.
package docstore

import "errors"

var (
	// ErrMalformedCollection means the persisted blob cannot be decoded into
	// a document collection. Surfaced as a data-integrity error, never retried.
	ErrMalformedCollection = errors.New("malformed document collection")

	// ErrAmbiguousReference means an id-less reference matched more than one
	// document by name within its type; the caller must supply an explicit id.
	ErrAmbiguousReference = errors.New("ambiguous document reference")

	// ErrDocumentNotFound means the reference resolved to no existing entry.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrMissingRejectionReason means a rejection was requested without a reason.
	ErrMissingRejectionReason = errors.New("rejection requires a reason")

	// ErrNoOpReupload means a reupload changed neither the url nor the version.
	ErrNoOpReupload = errors.New("reupload must change url or version")

	// ErrDocumentExpired means a review was attempted on a document whose
	// validity period has already passed; it must be reuploaded instead.
	ErrDocumentExpired = errors.New("document validity has expired")

	// ErrInvalidTransition means the requested status change is not one of
	// the caller-invoked transitions the state machine permits.
	ErrInvalidTransition = errors.New("invalid status transition")
)

package docstore

import (
	"fmt"
	"time"

	"dppapi/internal/model"
)

// expired reports whether the document's validity period has passed at now.
func expired(d model.Document, now time.Time) bool {
	return d.ValidUntil != nil && d.ValidUntil.Before(now)
}

// EffectiveStatus returns the status used for aggregation at time now.
// A pending or approved document past its ValidUntil reads as expired;
// rejection takes precedence over expiry.
func EffectiveStatus(d model.Document, now time.Time) model.DocumentStatus {
	if d.Status == model.StatusRejected {
		return model.StatusRejected
	}
	if expired(d, now) {
		return model.StatusExpired
	}
	return d.Status
}

// Transition applies a caller-invoked review decision to the document in
// place. Only approval and rejection are reachable here: pending is entered
// through Reupload, and expired is never stored.
//
// Reviews on a document past its ValidUntil are refused; the supplier must
// reupload a new version instead.
func Transition(d *model.Document, target model.DocumentStatus, reason string, now time.Time) error {
	switch target {
	case model.StatusApproved:
		if expired(*d, now) {
			return fmt.Errorf("%w: %s", ErrDocumentExpired, d.ID)
		}
		if d.Status != model.StatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, target)
		}
		d.Status = model.StatusApproved
		d.RejectionReason = ""
		return nil

	case model.StatusRejected:
		if expired(*d, now) {
			return fmt.Errorf("%w: %s", ErrDocumentExpired, d.ID)
		}
		if d.Status != model.StatusPending && d.Status != model.StatusApproved {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, target)
		}
		if reason == "" {
			return ErrMissingRejectionReason
		}
		d.Status = model.StatusRejected
		d.RejectionReason = reason
		return nil

	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, target)
	}
}

// Reupload resets the document to pending for a new review round. The new
// upload must actually change something: a reupload that carries the same url
// and version is refused so rejection state cannot be laundered away.
//
// newValidUntil, when non-nil, replaces the validity period; nil keeps the
// existing one.
func Reupload(d *model.Document, newURL, newVersion string, newValidUntil *time.Time) error {
	urlChanged := newURL != "" && newURL != d.URL
	versionChanged := newVersion != "" && newVersion != d.Version
	if !urlChanged && !versionChanged {
		return ErrNoOpReupload
	}

	if urlChanged {
		d.URL = newURL
	}
	if versionChanged {
		d.Version = newVersion
	}
	if newValidUntil != nil {
		d.ValidUntil = newValidUntil
	}
	d.Status = model.StatusPending
	d.RejectionReason = ""
	return nil
}

package docstore

import (
	"time"

	"dppapi/internal/model"
)

// Aggregate derives the owning entity's compliance status from its full
// collection, evaluated over each document's effective status at time now.
//
// Precedence is deliberate business policy: one rejection blocks
// certification regardless of how many other documents are approved, and
// pending review surfaces before expiry so reviewers see actionable items
// first.
func Aggregate(coll model.DocumentCollection, now time.Time) model.AggregateStatus {
	if coll.Count() == 0 {
		return model.AggregateNoDocuments
	}

	var hasPending, hasExpired, hasOther bool
	for _, d := range coll.Flatten() {
		switch EffectiveStatus(d, now) {
		case model.StatusRejected:
			return model.AggregateHasRejected
		case model.StatusPending:
			hasPending = true
		case model.StatusExpired:
			hasExpired = true
		case model.StatusApproved:
		default:
			hasOther = true
		}
	}

	switch {
	case hasPending:
		return model.AggregatePendingReview
	case hasExpired:
		return model.AggregateHasExpired
	case hasOther:
		return model.AggregateUnknown
	default:
		return model.AggregateAllApproved
	}
}

package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dppapi/internal/model"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func TestEffectiveStatus(t *testing.T) {
	past := ptrTime(now.Add(-24 * time.Hour))
	future := ptrTime(now.Add(24 * time.Hour))

	tests := []struct {
		name string
		doc  model.Document
		want model.DocumentStatus
	}{
		{"pending without expiry", model.Document{Status: model.StatusPending}, model.StatusPending},
		{"pending past validity reads expired", model.Document{Status: model.StatusPending, ValidUntil: past}, model.StatusExpired},
		{"approved past validity reads expired", model.Document{Status: model.StatusApproved, ValidUntil: past}, model.StatusExpired},
		{"approved within validity", model.Document{Status: model.StatusApproved, ValidUntil: future}, model.StatusApproved},
		{"rejection beats expiry", model.Document{Status: model.StatusRejected, RejectionReason: "x", ValidUntil: past}, model.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveStatus(tt.doc, now))
		})
	}
}

func TestTransition(t *testing.T) {
	past := ptrTime(now.Add(-time.Hour))

	tests := []struct {
		name       string
		doc        model.Document
		target     model.DocumentStatus
		reason     string
		wantErr    error
		wantStatus model.DocumentStatus
	}{
		{
			name:       "pending to approved",
			doc:        model.Document{Status: model.StatusPending},
			target:     model.StatusApproved,
			wantStatus: model.StatusApproved,
		},
		{
			name:       "pending to rejected with reason",
			doc:        model.Document{Status: model.StatusPending},
			target:     model.StatusRejected,
			reason:     "illegible",
			wantStatus: model.StatusRejected,
		},
		{
			name:    "pending to rejected without reason",
			doc:     model.Document{Status: model.StatusPending},
			target:  model.StatusRejected,
			wantErr: ErrMissingRejectionReason,
		},
		{
			name:       "approved to rejected re-review",
			doc:        model.Document{Status: model.StatusApproved},
			target:     model.StatusRejected,
			reason:     "superseded standard",
			wantStatus: model.StatusRejected,
		},
		{
			name:    "rejected to approved requires reupload",
			doc:     model.Document{Status: model.StatusRejected, RejectionReason: "x"},
			target:  model.StatusApproved,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "approve expired document",
			doc:     model.Document{Status: model.StatusPending, ValidUntil: past},
			target:  model.StatusApproved,
			wantErr: ErrDocumentExpired,
		},
		{
			name:    "reject expired document",
			doc:     model.Document{Status: model.StatusApproved, ValidUntil: past},
			target:  model.StatusRejected,
			reason:  "late",
			wantErr: ErrDocumentExpired,
		},
		{
			name:    "pending target goes through reupload",
			doc:     model.Document{Status: model.StatusRejected, RejectionReason: "x"},
			target:  model.StatusPending,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "expired is not a caller target",
			doc:     model.Document{Status: model.StatusPending},
			target:  model.StatusExpired,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "approved to approved",
			doc:     model.Document{Status: model.StatusApproved},
			target:  model.StatusApproved,
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.doc
			err := Transition(&doc, tt.target, tt.reason, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.doc, doc, "failed transition must not mutate")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, doc.Status)
			// Invariant: reason is set iff rejected.
			if doc.Status == model.StatusRejected {
				assert.NotEmpty(t, doc.RejectionReason)
			} else {
				assert.Empty(t, doc.RejectionReason)
			}
		})
	}
}

func TestTransition_ApprovalClearsStaleReason(t *testing.T) {
	// A reuploaded document carries no reason, but legacy data may violate
	// that; approval scrubs it either way.
	doc := model.Document{Status: model.StatusPending, RejectionReason: "stale"}
	require.NoError(t, Transition(&doc, model.StatusApproved, "", now))
	assert.Empty(t, doc.RejectionReason)
}

func TestReupload(t *testing.T) {
	until := ptrTime(now.Add(365 * 24 * time.Hour))

	tests := []struct {
		name       string
		doc        model.Document
		url        string
		version    string
		validUntil *time.Time
		wantErr    error
	}{
		{
			name:    "new url resets rejected to pending",
			doc:     model.Document{Status: model.StatusRejected, RejectionReason: "x", URL: "old", Version: "1.0"},
			url:     "new",
			version: "1.0",
		},
		{
			name:    "new version alone is enough",
			doc:     model.Document{Status: model.StatusRejected, RejectionReason: "x", URL: "old", Version: "1.0"},
			url:     "old",
			version: "2.0",
		},
		{
			name:       "expired document replaced with new validity",
			doc:        model.Document{Status: model.StatusApproved, URL: "old", Version: "1.0", ValidUntil: ptrTime(now.Add(-time.Hour))},
			url:        "new",
			version:    "2.0",
			validUntil: until,
		},
		{
			name:    "unchanged url and version",
			doc:     model.Document{Status: model.StatusRejected, RejectionReason: "x", URL: "old", Version: "1.0"},
			url:     "old",
			version: "1.0",
			wantErr: ErrNoOpReupload,
		},
		{
			name:    "empty url and version",
			doc:     model.Document{Status: model.StatusRejected, RejectionReason: "x", URL: "old", Version: "1.0"},
			wantErr: ErrNoOpReupload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.doc
			err := Reupload(&doc, tt.url, tt.version, tt.validUntil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.doc, doc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.StatusPending, doc.Status)
			assert.Empty(t, doc.RejectionReason)
			if tt.validUntil != nil {
				assert.Equal(t, tt.validUntil, doc.ValidUntil)
			}
		})
	}
}

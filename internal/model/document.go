package model

import (
	"sort"
	"time"
)

// DocumentType classifies a compliance artifact. The set below covers the
// categories the platform ships with; unknown non-empty types are accepted so
// deployments can extend the taxonomy without a code change.
type DocumentType string

const (
	DocTypeQualityCert       DocumentType = "quality_cert"
	DocTypeSafetyCert        DocumentType = "safety_cert"
	DocTypeCEDeclaration     DocumentType = "ce_declaration"
	DocTypeTestReport        DocumentType = "test_report"
	DocTypeSignatureCircular DocumentType = "signature_circular"
	DocTypeTradeRegistry     DocumentType = "trade_registry"
	DocTypeExportCert        DocumentType = "export_cert"
	DocTypeProductionPermit  DocumentType = "production_permit"
)

// DocumentStatus is the review state of a single document.
// StatusExpired is never persisted; it is derived at read time from ValidUntil.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusApproved DocumentStatus = "approved"
	StatusRejected DocumentStatus = "rejected"
	StatusExpired  DocumentStatus = "expired"
)

// ValidStatuses maps the statuses a document may carry or derive.
var ValidStatuses = map[DocumentStatus]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
	StatusExpired:  true,
}

// AggregateStatus is the rolled-up compliance state of an owning entity,
// derived from its full document collection.
type AggregateStatus string

const (
	AggregateNoDocuments   AggregateStatus = "no_documents"
	AggregateAllApproved   AggregateStatus = "all_approved"
	AggregatePendingReview AggregateStatus = "pending_review"
	AggregateHasRejected   AggregateStatus = "has_rejected"
	AggregateHasExpired    AggregateStatus = "has_expired"
	AggregateUnknown       AggregateStatus = "unknown"
)

// Document represents one uploaded compliance artifact and its review state.
// This is a pure domain model with no database-specific dependencies or tags;
// it is shared across layers (HTTP, service, record store) without coupling
// to persistence.
type Document struct {
	ID              string         `json:"id"`
	Type            DocumentType   `json:"type"`
	Name            string         `json:"name"`
	URL             string         `json:"url"`
	Status          DocumentStatus `json:"status"`
	Version         string         `json:"version,omitempty"`
	ValidUntil      *time.Time     `json:"validUntil,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	UploadedAt      time.Time      `json:"uploadedAt"`
	FileSize        int64          `json:"fileSize,omitempty"`
}

// DocumentCollection maps a document type to its ordered sequence of
// documents. Insertion order within a sequence is preserved; it carries no
// business meaning but must survive an encode/decode round trip.
type DocumentCollection map[DocumentType][]Document

// Types returns the collection's type keys in sorted order so iteration over
// the collection is deterministic.
func (c DocumentCollection) Types() []DocumentType {
	keys := make([]DocumentType, 0, len(c))
	for t := range c {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Flatten returns all documents across all types: type keys in sorted order,
// insertion order within each type.
func (c DocumentCollection) Flatten() []Document {
	out := make([]Document, 0, c.Count())
	for _, t := range c.Types() {
		out = append(out, c[t]...)
	}
	return out
}

// Count returns the total number of documents across all types.
func (c DocumentCollection) Count() int {
	n := 0
	for _, seq := range c {
		n += len(seq)
	}
	return n
}

// Clone returns a deep copy. Mutation pipelines operate on a clone so a failed
// cycle never leaks partial changes into a shared snapshot.
func (c DocumentCollection) Clone() DocumentCollection {
	out := make(DocumentCollection, len(c))
	for t, seq := range c {
		cp := make([]Document, len(seq))
		copy(cp, seq)
		out[t] = cp
	}
	return out
}

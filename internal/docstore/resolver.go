package docstore

import (
	"fmt"

	"github.com/google/uuid"

	"dppapi/internal/model"
)

// idNamespace seeds SHA1-based (version 5) UUID synthesis for documents that
// were persisted without an id. It must never change: synthesized ids are
// part of the stored data contract.
var idNamespace = uuid.MustParse("7c9e3a52-1f4b-4d08-9b5e-2a6f8c0d4e17")

// DocumentRef identifies a document within a collection. ID alone is
// sufficient; without an ID the pair (Type, Name) is used as a fallback.
type DocumentRef struct {
	ID   string             `json:"id,omitempty"`
	Type model.DocumentType `json:"type,omitempty"`
	Name string             `json:"name,omitempty"`
}

// Match locates one document inside a collection.
type Match struct {
	Type  model.DocumentType
	Index int
}

// Resolve finds the canonical entry a reference points at, in strict
// priority order:
//
//  1. Non-empty ID: exact id match across all types. A stale id that matches
//     nothing is ErrDocumentNotFound; there is no fallback to name matching.
//  2. Otherwise: exactly one entry with an identical name within the
//     reference's type. More than one is ErrAmbiguousReference and the caller
//     must disambiguate with an explicit id.
//
// A reference that matches nothing yields ErrDocumentNotFound; callers that
// accept new documents treat that as "append".
func Resolve(coll model.DocumentCollection, ref DocumentRef) (Match, error) {
	if ref.ID != "" {
		for _, t := range coll.Types() {
			for i, d := range coll[t] {
				if d.ID == ref.ID {
					return Match{Type: t, Index: i}, nil
				}
			}
		}
		return Match{}, fmt.Errorf("%w: id %s", ErrDocumentNotFound, ref.ID)
	}

	if ref.Type == "" || ref.Name == "" {
		return Match{}, fmt.Errorf("%w: reference needs an id or type and name", ErrDocumentNotFound)
	}

	found := -1
	for i, d := range coll[ref.Type] {
		if d.Name != ref.Name {
			continue
		}
		if found >= 0 {
			return Match{}, fmt.Errorf("%w: %q appears more than once under %s", ErrAmbiguousReference, ref.Name, ref.Type)
		}
		found = i
	}
	if found < 0 {
		return Match{}, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, ref.Type, ref.Name)
	}
	return Match{Type: ref.Type, Index: found}, nil
}

// SynthesizeID derives a stable document id from the owning entity, type,
// name, and insertion position. Identical inputs always produce the same id.
func SynthesizeID(ownerID string, t model.DocumentType, name string, position int) string {
	seed := fmt.Sprintf("%s/%s/%s/%d", ownerID, t, name, position)
	return uuid.NewSHA1(idNamespace, []byte(seed)).String()
}

package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dppapi/internal/model"
)

// The platform historically persisted document collections in two shapes: a
// flat list where every element carries its own type field, and a map keyed
// by type. Decode accepts both; Encode always emits the map shape, which is
// the canonical persisted form going forward.

// Decode parses a persisted documents blob into the canonical collection.
// ownerID seeds deterministic id synthesis for legacy entries that were
// stored without one, so repeated decodes of the same unmodified blob always
// yield the same ids.
//
// An empty, "null", or absent blob decodes to an empty collection.
func Decode(ownerID string, raw []byte) (model.DocumentCollection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.DocumentCollection{}, nil
	}

	var coll model.DocumentCollection
	switch raw[0] {
	case '[':
		var flat []model.Document
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCollection, err)
		}
		coll = make(model.DocumentCollection)
		for _, d := range flat {
			if d.Type == "" {
				return nil, fmt.Errorf("%w: flat entry %q has no type", ErrMalformedCollection, d.Name)
			}
			coll[d.Type] = append(coll[d.Type], d)
		}
	case '{':
		var keyed map[model.DocumentType][]model.Document
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCollection, err)
		}
		coll = make(model.DocumentCollection, len(keyed))
		for t, seq := range keyed {
			if t == "" {
				return nil, fmt.Errorf("%w: empty type key", ErrMalformedCollection)
			}
			for i := range seq {
				// The map key is authoritative for placement.
				seq[i].Type = t
			}
			coll[t] = seq
		}
	default:
		return nil, fmt.Errorf("%w: unrecognized shape", ErrMalformedCollection)
	}

	if err := canonicalize(ownerID, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

// Encode serializes a collection into the canonical map-of-type-to-list
// shape. Decode(Encode(c)) == c for any collection produced by this engine.
func Encode(coll model.DocumentCollection) ([]byte, error) {
	if coll == nil {
		coll = model.DocumentCollection{}
	}
	raw, err := json.Marshal(coll)
	if err != nil {
		return nil, fmt.Errorf("encode document collection: %w", err)
	}
	return raw, nil
}

// canonicalize assigns deterministic ids to id-less entries, defaults missing
// statuses to pending, and enforces id uniqueness across the whole collection.
func canonicalize(ownerID string, coll model.DocumentCollection) error {
	seen := make(map[string]bool, coll.Count())
	for _, t := range coll.Types() {
		seq := coll[t]
		for i := range seq {
			if seq[i].ID == "" {
				seq[i].ID = SynthesizeID(ownerID, t, seq[i].Name, i)
			}
			if seq[i].Status == "" {
				seq[i].Status = model.StatusPending
			}
			if seen[seq[i].ID] {
				return fmt.Errorf("%w: duplicate document id %s", ErrMalformedCollection, seq[i].ID)
			}
			seen[seq[i].ID] = true
		}
	}
	return nil
}

// Package orgsettings implements the per-organization settings document and
// the read-merge-write contract used by integration state updates.
//
// The document is deliberately kept as a map of raw JSON values at the top
// level: a partial write to one integration's sub-object must leave every
// sibling key byte-identical, including keys this version of the code has
// never heard of. Older rows may carry ancillary keys (sync error channels,
// UI preferences) that a typed struct would silently drop on round-trip.
// Only the sub-object being written is decoded, merged field-wise, and
// re-encoded.
package orgsettings

import (
	"encoding/json"
	"fmt"
)

// Well-known top-level keys of the settings document.
const (
	KeyGmail              = "gmailIntegration"
	KeyGoogleCalendar     = "googleCalendarIntegration"
	KeyCalendarSyncErrors = "calendarSyncErrors"
)

// Document is an organization's settings document. A nil Document is treated
// as an empty document everywhere; absence of a settings row is not an error.
type Document map[string]json.RawMessage

// ParseDocument decodes raw JSON into a Document. Empty or nil input yields
// an empty document.
func ParseDocument(raw []byte) (Document, error) {
	if len(raw) == 0 {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Encode marshals the document for storage. Key order is deterministic
// (sorted), so encoding an unchanged document yields identical bytes.
func (d Document) Encode() (json.RawMessage, error) {
	if d == nil {
		d = Document{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings document: %w", err)
	}
	return raw, nil
}

// Clone returns a shallow copy of the document. Raw values are immutable by
// convention, so sharing them between copies is safe.
func (d Document) Clone() Document {
	out := make(Document, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}

// WithoutKey returns a copy of the document with the given top-level key
// removed entirely (absent, not null).
func (d Document) WithoutKey(key string) Document {
	out := d.Clone()
	delete(out, key)
	return out
}

// Optional is a tri-state patch field: absent (leave the stored value
// untouched), explicit null (clear the stored value), or a concrete value.
// The zero value is absent.
type Optional[T any] struct {
	present bool
	value   *T
}

// Set returns an Optional carrying a concrete value.
func Set[T any](v T) Optional[T] {
	return Optional[T]{present: true, value: &v}
}

// Clear returns an Optional that writes an explicit null, clearing the field.
func Clear[T any]() Optional[T] {
	return Optional[T]{present: true}
}

func (o Optional[T]) apply(fields map[string]any, name string) {
	if !o.present {
		return
	}
	if o.value == nil {
		fields[name] = nil
		return
	}
	fields[name] = *o.value
}

// mergeKey replaces doc[key] with the field-wise merge of its current
// contents and the patch fields. Fields not named in the patch are preserved,
// including fields unknown to this code. A nil patch value encodes as JSON
// null. All other top-level keys are carried over untouched.
func mergeKey(doc Document, key string, fields map[string]any) (Document, error) {
	current := map[string]any{}
	if raw, ok := doc[key]; ok && len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &current); err != nil {
			return nil, fmt.Errorf("settings key %q is not an object: %w", key, err)
		}
	}
	for name, v := range fields {
		current[name] = v
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings key %q: %w", key, err)
	}

	out := doc.Clone()
	out[key] = merged
	return out, nil
}

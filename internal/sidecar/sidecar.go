// Package sidecar reads and patches model metadata JSON documents.
//
// Only id, tags, hidden and hash are interpreted; every other field is kept
// as raw JSON and written back untouched.
package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	fieldID     = "id"
	fieldTags   = "tags"
	fieldHidden = "hidden"
	fieldHash   = "hash"
)

// Document is a parsed sidecar.
type Document struct {
	fields map[string]json.RawMessage
}

// Parse decodes a sidecar. The top-level value must be a JSON object.
func Parse(data []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("sidecar: decode: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("sidecar: document is not an object")
	}
	return &Document{fields: fields}, nil
}

// ID returns the model id, or "" when absent or not a string.
func (d *Document) ID() string { return d.str(fieldID) }

// Hash returns the stored content hash of the primary model file.
func (d *Document) Hash() string { return d.str(fieldHash) }

// Hidden reports the stored hidden flag.
func (d *Document) Hidden() bool {
	var v bool
	if raw, ok := d.fields[fieldHidden]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}

// Tags returns the tag list. Non-string entries are ignored.
func (d *Document) Tags() []string {
	raw, ok := d.fields[fieldTags]
	if !ok {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SetHidden stores the hidden flag and reports whether it changed.
func (d *Document) SetHidden(hidden bool) bool {
	if _, ok := d.fields[fieldHidden]; ok && d.Hidden() == hidden {
		return false
	}
	d.set(fieldHidden, hidden)
	return true
}

// SetHash stores the content hash.
func (d *Document) SetHash(hash string) { d.set(fieldHash, hash) }

// AddTag appends tag unless an equal string tag (ignoring case) is already
// present. Other entries, including non-string ones, are kept as they are. A
// missing or non-array tags field is replaced by a list holding only tag. It
// reports whether the document changed.
func (d *Document) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	var items []json.RawMessage
	if raw, ok := d.fields[fieldTags]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			items = nil
		}
	}
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil && strings.EqualFold(s, tag) {
			return false
		}
	}
	raw, err := json.Marshal(tag)
	if err != nil {
		return false
	}
	d.set(fieldTags, append(items, raw))
	return true
}

// Encode serializes the document with two-space indentation.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.fields); err != nil {
		return nil, fmt.Errorf("sidecar: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) str(key string) string {
	var s string
	if raw, ok := d.fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func (d *Document) set(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	d.fields[key] = raw
}

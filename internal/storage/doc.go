// Package storage persists habit records.
//
// The schema is intentionally flat: one habits table keyed by an
// auto-assigned integer id. Reads return value copies; writers go through
// single statements so SQLite's own serialization is the only lock needed.
package storage

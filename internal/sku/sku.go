// Package sku implements SKU to Master-SKU resolution.
// This package has no I/O or UI dependencies and is shared by both the
// dashboard service and the interactive mapper tool.
package sku

import (
	"sort"
	"strings"
)

// Sentinel values written in place of an MSKU when resolution fails.
// Both signify the same condition but are lexically distinct; the batch
// and interactive paths each have their own and consumers must not
// conflate them.
const (
	// Unknown is the unmapped marker used by the dashboard ingest path.
	Unknown = "UNKNOWN"

	// NotFound is the unmapped marker used by the interactive mapper.
	NotFound = "MAPPING_NOT_FOUND"
)

// comboSep is the delimiter for combo keys in mapping sources and for
// the normalized composite keys inside the index.
const comboSep = ","

// MappingEntry is one row of a mapping source. SKU may be a single code
// or a comma-joined combo of constituent codes.
type MappingEntry struct {
	SKU  string
	MSKU string
}

// Stats describes what BuildIndex encountered while indexing.
type Stats struct {
	Singles    int // distinct single-SKU keys
	Combos     int // distinct combo (multi-SKU) keys
	Overwrites int // rows that replaced an earlier row with the same key
	EmptyMSKUs int // rows whose MSKU was empty (accepted as-is)
}

// Index is an immutable lookup table from normalized SKU keys to MSKUs.
// Single keys and composite combo keys live in separate key spaces, so
// a plain incoming SKU can never accidentally hit a combo entry.
// Build it once per mapping snapshot; lookups are pure and never error.
type Index struct {
	singles  map[string]string
	combos   map[string]string
	caseFold bool
	stats    Stats
}

// Option configures index construction and lookup normalization.
type Option func(*Index)

// WithCaseFold makes normalization lowercase keys in addition to
// trimming, on both the build and lookup sides. Default matching is
// case sensitive; this option is the opt-in fix for mapping sources
// with inconsistent casing.
func WithCaseFold() Option {
	return func(ix *Index) { ix.caseFold = true }
}

// BuildIndex consumes mapping rows in order and produces a lookup index.
// A key containing a comma is split, each part trimmed, the parts
// sorted, and the result stored as an order-independent combo key;
// any other key is trimmed only. Later rows overwrite earlier rows
// sharing a normalized key. MSKU values are not validated; empty
// values are stored as-is and counted in Stats.
func BuildIndex(rows []MappingEntry, opts ...Option) *Index {
	ix := &Index{
		singles: make(map[string]string, len(rows)),
		combos:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(ix)
	}

	for _, row := range rows {
		target := ix.singles
		key := ix.normalize(row.SKU)
		if strings.Contains(row.SKU, comboSep) {
			target = ix.combos
			key = ix.comboKey(strings.Split(row.SKU, comboSep))
		}

		if _, seen := target[key]; seen {
			ix.stats.Overwrites++
		}
		if row.MSKU == "" {
			ix.stats.EmptyMSKUs++
		}
		target[key] = row.MSKU
	}

	ix.stats.Singles = len(ix.singles)
	ix.stats.Combos = len(ix.combos)
	return ix
}

// Resolve looks up a single incoming SKU against the single-key path.
// The input is normalized (trim, plus casefold if enabled) and matched
// exactly; combo entries are never consulted here. A miss is a normal
// outcome, not an error; the caller chooses which sentinel to surface.
func (ix *Index) Resolve(sku string) (string, bool) {
	msku, ok := ix.singles[ix.normalize(sku)]
	return msku, ok
}

// ResolveCombo looks up a bundle of constituent SKUs through the
// composite path. Part order does not matter.
func (ix *Index) ResolveCombo(parts ...string) (string, bool) {
	msku, ok := ix.combos[ix.comboKey(parts)]
	return msku, ok
}

// Len returns the number of distinct keys in the index.
func (ix *Index) Len() int { return len(ix.singles) + len(ix.combos) }

// Stats returns counters gathered during BuildIndex.
func (ix *Index) Stats() Stats { return ix.stats }

func (ix *Index) normalize(s string) string {
	s = strings.TrimSpace(s)
	if ix.caseFold {
		s = strings.ToLower(s)
	}
	return s
}

func (ix *Index) comboKey(parts []string) string {
	norm := make([]string, 0, len(parts))
	for _, p := range parts {
		norm = append(norm, ix.normalize(p))
	}
	sort.Strings(norm)
	return strings.Join(norm, comboSep)
}

// Package index builds and publishes the immutable screening index. The
// index is rebuilt whole from the active list versions and swapped in with a
// single atomic pointer store, so readers never block and never observe a
// partially updated view.
package index

import (
	"sort"
	"time"

	"chainscreen/internal/canonical"
	"chainscreen/internal/list"
	"chainscreen/pkg/domain"
)

// Key addresses one index slot. Lookups are exact on (chain, canonical).
type Key struct {
	Chain     canonical.Chain
	Canonical string
}

// Match is the evidence behind an exact hit: the sanctioned entity and every
// active version contributing the address.
type Match struct {
	EntityUID  string
	EntityName string
	Program    string
	VersionIDs []domain.VersionID
}

// Index is an immutable point-in-time view over the active versions. Never
// mutate an Index after Build returns; publish a new one instead.
type Index struct {
	entries    map[Key]*Match
	versionIDs []domain.VersionID
	builtAt    time.Time
}

// Build constructs an index from the active versions and their entries.
// Deterministic: the same inputs yield the same index regardless of entry
// order. When the same address appears in several versions the first entity
// (by version order, then entry order) wins and every version is recorded as
// contributing.
func Build(versions []*list.ListVersion, entries []list.Entry, builtAt time.Time) *Index {
	idx := &Index{
		entries: make(map[Key]*Match, len(entries)),
		builtAt: builtAt,
	}
	for _, v := range versions {
		idx.versionIDs = append(idx.versionIDs, v.ID)
	}

	for _, e := range entries {
		key := Key{Chain: e.Address.Chain, Canonical: e.Address.Canonical}
		m, ok := idx.entries[key]
		if !ok {
			idx.entries[key] = &Match{
				EntityUID:  e.EntityUID,
				EntityName: e.EntityName,
				Program:    e.Program,
				VersionIDs: []domain.VersionID{e.VersionID},
			}
			continue
		}
		if !containsVersion(m.VersionIDs, e.VersionID) {
			m.VersionIDs = append(m.VersionIDs, e.VersionID)
		}
	}

	for _, m := range idx.entries {
		sort.Slice(m.VersionIDs, func(i, j int) bool {
			return m.VersionIDs[i].String() < m.VersionIDs[j].String()
		})
	}
	return idx
}

// Lookup returns the match for an address, or nil when it is not listed.
func (idx *Index) Lookup(addr canonical.Address) *Match {
	return idx.entries[Key{Chain: addr.Chain, Canonical: addr.Canonical}]
}

// Size returns the number of distinct indexed addresses.
func (idx *Index) Size() int { return len(idx.entries) }

// VersionIDs returns the versions this index was built from.
func (idx *Index) VersionIDs() []domain.VersionID { return idx.versionIDs }

// BuiltAt returns the index build timestamp.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

func containsVersion(ids []domain.VersionID, id domain.VersionID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

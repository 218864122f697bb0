// Package ledger maintains the persistent version record for every mirrored
// resource type: when it was first seen, when its schema content last
// changed, and when it disappeared from the registry.
//
// The ledger is the authoritative version store. It is loaded once per pass,
// mutated in memory as observations arrive, and persisted atomically at the
// end of the pass. The git history log (internal/history) is an optional
// audit trail derived from the same pass, never a second source of truth.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schemadrift/schemadrift/internal/schema"
)

// File names under the mirror root. Both serialize with sorted keys so the
// files themselves diff minimally between passes.
const (
	VersionsFile = "versions.json"
	RemovedFile  = "removed.json"
)

// MetadataPolicy controls when provider metadata on a version record is
// overwritten from a fresh fetch.
type MetadataPolicy string

const (
	// PolicyAlways overwrites metadata on every observation. Provider
	// metadata can change independently of schema content, so this is the
	// default.
	PolicyAlways MetadataPolicy = "always"

	// PolicyOnChange overwrites metadata only when the schema content
	// changed in the same observation.
	PolicyOnChange MetadataPolicy = "on-change"
)

// ParsePolicy validates a policy string from configuration.
func ParsePolicy(s string) (MetadataPolicy, error) {
	switch MetadataPolicy(s) {
	case PolicyAlways, PolicyOnChange:
		return MetadataPolicy(s), nil
	case "":
		return PolicyAlways, nil
	default:
		return "", fmt.Errorf("unknown metadata policy %q (want %q or %q)", s, PolicyAlways, PolicyOnChange)
	}
}

// VersionRecord tracks one active resource type.
type VersionRecord struct {
	// FirstSeen is when the type first appeared in a pass. Set once.
	FirstSeen time.Time `json:"first_seen"`

	// LastUpdated is when the type's canonical schema content last
	// differed from the stored blob. Never bumped by a no-op re-fetch.
	LastUpdated time.Time `json:"last_updated"`

	// TimeCreated is the provider's own creation timestamp, when reported.
	TimeCreated *time.Time `json:"time_created,omitempty"`

	// DeprecatedStatus is the provider's deprecation flag, when reported.
	DeprecatedStatus string `json:"deprecation_status,omitempty"`
}

// RemovedRecord archives a version record for a type that disappeared from
// the registry. Entries are append-only: a type that reappears gets a fresh
// VersionRecord and its RemovedRecord stays untouched.
type RemovedRecord struct {
	VersionRecord

	// RemovedDate is the timestamp of the pass that detected the removal.
	RemovedDate time.Time `json:"removed_date"`
}

// Ledger is the in-memory version state for one mirror, safe for concurrent
// observations from a worker pool.
type Ledger struct {
	mu       sync.Mutex
	dir      string
	policy   MetadataPolicy
	versions map[string]*VersionRecord
	removed  map[string]*RemovedRecord
}

// Open loads the ledger files from dir, starting empty when they do not
// exist yet. The metadata policy is fixed for the lifetime of the Ledger.
func Open(dir string, policy MetadataPolicy) (*Ledger, error) {
	l := &Ledger{
		dir:      dir,
		policy:   policy,
		versions: make(map[string]*VersionRecord),
		removed:  make(map[string]*RemovedRecord),
	}

	if err := loadJSON(filepath.Join(dir, VersionsFile), &l.versions); err != nil {
		return nil, fmt.Errorf("failed to load version ledger: %w", err)
	}
	if err := loadJSON(filepath.Join(dir, RemovedFile), &l.removed); err != nil {
		return nil, fmt.Errorf("failed to load removed ledger: %w", err)
	}

	return l, nil
}

// Policy returns the configured metadata overwrite policy.
func (l *Ledger) Policy() MetadataPolicy {
	return l.policy
}

// RecordObservation folds one fetched type into the ledger.
//
// A type without a record gets a fresh one with FirstSeen = LastUpdated =
// now. An existing record bumps LastUpdated only when changed is true, so a
// repeated unchanged observation within a pass is a no-op. Metadata is
// applied per the configured policy; absent fields never clear stored ones.
func (l *Ledger) RecordObservation(typeName string, changed bool, now time.Time, md schema.Metadata) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.versions[typeName]
	if !ok {
		rec = &VersionRecord{FirstSeen: now, LastUpdated: now}
		l.versions[typeName] = rec
		applyMetadata(rec, md)
		return
	}

	if changed {
		rec.LastUpdated = now
	}
	if l.policy == PolicyAlways || changed {
		applyMetadata(rec, md)
	}
}

// applyMetadata copies populated metadata fields onto the record.
func applyMetadata(rec *VersionRecord, md schema.Metadata) {
	if md.TimeCreated != nil {
		t := *md.TimeCreated
		rec.TimeCreated = &t
	}
	if md.DeprecatedStatus != "" {
		rec.DeprecatedStatus = md.DeprecatedStatus
	}
}

// ReconcileRemovals archives every active record whose type is absent from
// observed, stamping it with now. Call exactly once per pass, after all
// observations; observed must be the successfully-processed set, not the
// enumerated one, so a transient fetch failure never reads as a removal.
// Returns the removed type names in no particular order.
func (l *Ledger) ReconcileRemovals(observed map[string]struct{}, now time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []string
	for name, rec := range l.versions {
		if _, ok := observed[name]; ok {
			continue
		}
		l.removed[name] = &RemovedRecord{VersionRecord: *rec, RemovedDate: now}
		delete(l.versions, name)
		removed = append(removed, name)
	}

	return removed
}

// Get returns a copy of the active record for typeName.
func (l *Ledger) Get(typeName string) (VersionRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.versions[typeName]
	if !ok {
		return VersionRecord{}, false
	}
	return *rec, true
}

// GetRemoved returns a copy of the archived record for typeName.
func (l *Ledger) GetRemoved(typeName string) (RemovedRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.removed[typeName]
	if !ok {
		return RemovedRecord{}, false
	}
	return *rec, true
}

// Versions returns a copy of the active record set.
func (l *Ledger) Versions() map[string]VersionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]VersionRecord, len(l.versions))
	for name, rec := range l.versions {
		out[name] = *rec
	}
	return out
}

// Removed returns a copy of the archived record set.
func (l *Ledger) Removed() map[string]RemovedRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]RemovedRecord, len(l.removed))
	for name, rec := range l.removed {
		out[name] = *rec
	}
	return out
}

// Counts returns the number of active and removed records.
func (l *Ledger) Counts() (active, removed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.versions), len(l.removed)
}

// Save persists both ledger files atomically: each file is fully written to
// a temp file first, and the renames happen only after both writes
// succeeded, so a failed save leaves the previous durable state intact and
// no partial file ever becomes visible.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	versionsData, err := marshalStable(l.versions)
	if err != nil {
		return fmt.Errorf("failed to serialize version ledger: %w", err)
	}
	removedData, err := marshalStable(l.removed)
	if err != nil {
		return fmt.Errorf("failed to serialize removed ledger: %w", err)
	}

	versionsTmp, err := writeTemp(l.dir, versionsData)
	if err != nil {
		return fmt.Errorf("failed to stage version ledger: %w", err)
	}
	removedTmp, err := writeTemp(l.dir, removedData)
	if err != nil {
		os.Remove(versionsTmp)
		return fmt.Errorf("failed to stage removed ledger: %w", err)
	}

	// The removed file lands first. Records only ever move from the
	// version file into the removed file, so a crash between the two
	// renames leaves the moved record present in both files rather than
	// in neither.
	if err := os.Rename(removedTmp, filepath.Join(l.dir, RemovedFile)); err != nil {
		os.Remove(versionsTmp)
		os.Remove(removedTmp)
		return fmt.Errorf("failed to persist removed ledger: %w", err)
	}
	if err := os.Rename(versionsTmp, filepath.Join(l.dir, VersionsFile)); err != nil {
		os.Remove(versionsTmp)
		return fmt.Errorf("failed to persist version ledger: %w", err)
	}

	return nil
}

// marshalStable serializes a record map with sorted keys and a trailing
// newline, matching the blob store's canonical formatting.
func marshalStable(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// writeTemp writes data to a fresh temp file in dir and returns its path.
func writeTemp(dir string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return "", err
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", err
	}

	return name, nil
}

// loadJSON reads path into dst, treating a missing file as empty state.
func loadJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

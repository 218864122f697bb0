package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/schemadrift/schemadrift/internal/schema"
)

var (
	t1 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	t2 = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	t3 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

func openTestLedger(t *testing.T, policy MetadataPolicy) (*Ledger, string) {
	t.Helper()

	dir := t.TempDir()
	l, err := Open(dir, policy)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	return l, dir
}

func observed(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func TestNewEntityFirstSeenEqualsLastUpdated(t *testing.T) {
	l, _ := openTestLedger(t, PolicyAlways)

	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{})

	rec, ok := l.Get("AWS::S3::Bucket")
	if !ok {
		t.Fatal("record not created")
	}
	if !rec.FirstSeen.Equal(t1) || !rec.LastUpdated.Equal(t1) {
		t.Errorf("first_seen=%v last_updated=%v, want both %v", rec.FirstSeen, rec.LastUpdated, t1)
	}
}

func TestUnchangedObservationKeepsLastUpdated(t *testing.T) {
	l, _ := openTestLedger(t, PolicyAlways)

	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{})
	l.RecordObservation("AWS::S3::Bucket", false, t2, schema.Metadata{})

	rec, _ := l.Get("AWS::S3::Bucket")
	if !rec.LastUpdated.Equal(t1) {
		t.Errorf("last_updated drifted to %v on a no-op observation", rec.LastUpdated)
	}
	if !rec.FirstSeen.Equal(t1) {
		t.Errorf("first_seen mutated to %v", rec.FirstSeen)
	}
}

func TestChangedObservationBumpsLastUpdatedOnly(t *testing.T) {
	l, _ := openTestLedger(t, PolicyAlways)

	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{})
	l.RecordObservation("AWS::S3::Bucket", true, t2, schema.Metadata{})

	rec, _ := l.Get("AWS::S3::Bucket")
	if !rec.FirstSeen.Equal(t1) {
		t.Errorf("first_seen mutated to %v", rec.FirstSeen)
	}
	if !rec.LastUpdated.Equal(t2) {
		t.Errorf("last_updated = %v, want %v", rec.LastUpdated, t2)
	}
}

func TestMetadataPolicyAlways(t *testing.T) {
	l, _ := openTestLedger(t, PolicyAlways)

	created := t1.Add(-24 * time.Hour)
	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{TimeCreated: &created})

	// Metadata arrives on an unchanged observation: always-policy applies it.
	l.RecordObservation("AWS::S3::Bucket", false, t2, schema.Metadata{DeprecatedStatus: "DEPRECATED"})

	rec, _ := l.Get("AWS::S3::Bucket")
	if rec.DeprecatedStatus != "DEPRECATED" {
		t.Errorf("always-policy did not apply metadata: %q", rec.DeprecatedStatus)
	}
	if rec.TimeCreated == nil || !rec.TimeCreated.Equal(created) {
		t.Errorf("absent metadata field cleared stored value: %v", rec.TimeCreated)
	}
}

func TestMetadataPolicyOnChange(t *testing.T) {
	l, _ := openTestLedger(t, PolicyOnChange)

	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{DeprecatedStatus: "LIVE"})
	l.RecordObservation("AWS::S3::Bucket", false, t2, schema.Metadata{DeprecatedStatus: "DEPRECATED"})

	rec, _ := l.Get("AWS::S3::Bucket")
	if rec.DeprecatedStatus != "LIVE" {
		t.Errorf("on-change policy applied metadata on unchanged observation: %q", rec.DeprecatedStatus)
	}

	l.RecordObservation("AWS::S3::Bucket", true, t3, schema.Metadata{DeprecatedStatus: "DEPRECATED"})
	rec, _ = l.Get("AWS::S3::Bucket")
	if rec.DeprecatedStatus != "DEPRECATED" {
		t.Errorf("on-change policy skipped metadata on changed observation: %q", rec.DeprecatedStatus)
	}
}

func TestReconcileRemovalsArchivesMissingTypes(t *testing.T) {
	l, _ := openTestLedger(t, PolicyAlways)

	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{})
	l.RecordObservation("AWS::EC2::VPC", true, t1, schema.Metadata{})

	removed := l.ReconcileRemovals(observed("AWS::S3::Bucket"), t2)
	if len(removed) != 1 || removed[0] != "AWS::EC2::VPC" {
		t.Fatalf("removed = %v, want [AWS::EC2::VPC]", removed)
	}

	if _, ok := l.Get("AWS::EC2::VPC"); ok {
		t.Error("removed type still has an active record")
	}
	arch, ok := l.GetRemoved("AWS::EC2::VPC")
	if !ok {
		t.Fatal("removed type missing from archive")
	}
	if !arch.RemovedDate.Equal(t2) {
		t.Errorf("removed_date = %v, want %v", arch.RemovedDate, t2)
	}
	if !arch.FirstSeen.Equal(t1) || !arch.LastUpdated.Equal(t1) {
		t.Errorf("archive did not preserve the version record: %+v", arch)
	}
}

func TestReappearanceGetsFreshRecordKeepsArchive(t *testing.T) {
	l, _ := openTestLedger(t, PolicyAlways)

	l.RecordObservation("AWS::EC2::VPC", true, t1, schema.Metadata{})
	l.ReconcileRemovals(observed(), t2)

	// The type comes back in a later pass.
	l.RecordObservation("AWS::EC2::VPC", true, t3, schema.Metadata{})

	rec, ok := l.Get("AWS::EC2::VPC")
	if !ok {
		t.Fatal("reappeared type has no active record")
	}
	if !rec.FirstSeen.Equal(t3) {
		t.Errorf("reappearance did not reset first_seen: %v", rec.FirstSeen)
	}

	arch, ok := l.GetRemoved("AWS::EC2::VPC")
	if !ok {
		t.Fatal("archive entry lost on reappearance")
	}
	if !arch.RemovedDate.Equal(t2) || !arch.FirstSeen.Equal(t1) {
		t.Errorf("archive entry mutated on reappearance: %+v", arch)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	l, dir := openTestLedger(t, PolicyAlways)

	created := t1.Add(-time.Hour)
	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{TimeCreated: &created, DeprecatedStatus: "LIVE"})
	l.RecordObservation("AWS::EC2::VPC", true, t1, schema.Metadata{})
	l.ReconcileRemovals(observed("AWS::S3::Bucket"), t2)

	if err := l.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Open(dir, PolicyAlways)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if diff := cmp.Diff(l.Versions(), reloaded.Versions()); diff != "" {
		t.Errorf("versions mismatch after reload (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(l.Removed(), reloaded.Removed()); diff != "" {
		t.Errorf("removed mismatch after reload (-want +got):\n%s", diff)
	}
}

func TestSaveIsByteStable(t *testing.T) {
	l, dir := openTestLedger(t, PolicyAlways)

	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{})
	l.RecordObservation("AWS::EC2::VPC", true, t1, schema.Metadata{})

	if err := l.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(dir, VersionsFile))
	if err != nil {
		t.Fatalf("failed to read ledger file: %v", err)
	}

	// A second save with identical state must produce identical bytes.
	if err := l.Save(); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir, VersionsFile))
	if err != nil {
		t.Fatalf("failed to read ledger file: %v", err)
	}

	if string(first) != string(second) {
		t.Error("ledger serialization is not byte-stable across saves")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	l, dir := openTestLedger(t, PolicyAlways)

	l.RecordObservation("AWS::S3::Bucket", true, t1, schema.Metadata{})
	if err := l.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".ledger-") {
			t.Errorf("stale temp file left behind: %s", e.Name())
		}
	}
}

func TestInterruptedSaveKeepsArchivedRecord(t *testing.T) {
	l, dir := openTestLedger(t, PolicyAlways)
	l.RecordObservation("AWS::A::A", true, t1, schema.Metadata{})
	l.RecordObservation("AWS::B::B", true, t1, schema.Metadata{})
	if err := l.Save(); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}

	// Archive B, then block the version file rename so the save fails
	// after the removed file already landed.
	l.ReconcileRemovals(observed("AWS::A::A"), t2)
	versionsPath := filepath.Join(dir, VersionsFile)
	if err := os.Remove(versionsPath); err != nil {
		t.Fatalf("failed to remove versions file: %v", err)
	}
	if err := os.Mkdir(versionsPath, 0o755); err != nil {
		t.Fatalf("failed to create blocking directory: %v", err)
	}

	if err := l.Save(); err == nil {
		t.Fatal("expected save to fail with blocked versions file")
	}

	// The archived record must already be durable; an interrupted save
	// may leave a record in both files, never in neither.
	var removed map[string]RemovedRecord
	if err := loadJSON(filepath.Join(dir, RemovedFile), &removed); err != nil {
		t.Fatalf("failed to read removed file: %v", err)
	}
	if _, ok := removed["AWS::B::B"]; !ok {
		t.Error("archived record lost by interrupted save")
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyAlways {
		t.Errorf("empty policy: got %q, %v", p, err)
	}
	if p, err := ParsePolicy("on-change"); err != nil || p != PolicyOnChange {
		t.Errorf("on-change policy: got %q, %v", p, err)
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "schemas"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestWriteNewBlobIsChanged(t *testing.T) {
	s := newTestStore(t)

	changed, err := s.Write("AWS::S3::Bucket", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !changed {
		t.Error("first write should report changed=true")
	}
}

func TestWriteIdenticalContentIsUnchanged(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Write("AWS::S3::Bucket", []byte(`{"a":1,"b":2}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Same content, different key order: must not read as a change.
	changed, err := s.Write("AWS::S3::Bucket", []byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if changed {
		t.Error("reordered identical content should report changed=false")
	}
}

func TestWriteModifiedContentIsChanged(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Write("AWS::S3::Bucket", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	changed, err := s.Write("AWS::S3::Bucket", []byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !changed {
		t.Error("modified content should report changed=true")
	}
}

func TestWriteRejectsInvalidJSON(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Write("AWS::S3::Bucket", []byte(`nope{`)); err == nil {
		t.Error("expected error for invalid JSON")
	}

	// A failed write must not leave a blob behind.
	if _, err := os.Stat(s.Path("AWS::S3::Bucket")); !os.IsNotExist(err) {
		t.Error("invalid write left a blob on disk")
	}
}

func TestReadReturnsCanonicalBytes(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Write("AWS::S3::Bucket", []byte(`{"b":2,"a":1}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := s.Read("AWS::S3::Bucket")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := "{\n  \"a\": 1,\n  \"b\": 2\n}\n"
	if string(data) != want {
		t.Errorf("stored blob not canonical:\ngot:  %q\nwant: %q", data, want)
	}
}

func TestListRecoversTypeNames(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"AWS::S3::Bucket", "AWS::EC2::VPC"} {
		if _, err := s.Write(name, []byte(`{}`)); err != nil {
			t.Fatalf("Write(%s) failed: %v", name, err)
		}
	}

	// Non-schema files are ignored.
	if err := os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write stray file: %v", err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"AWS::EC2::VPC", "AWS::S3::Bucket"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("List = %v, want %v", names, want)
	}
}

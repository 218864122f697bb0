package schema

import (
	"bytes"
	"testing"
)

func TestFileNameRoundTrip(t *testing.T) {
	names := []string{
		"AWS::S3::Bucket",
		"AWS::EC2::VPC",
		"AWS::ApiGatewayV2::DomainName",
	}

	for _, name := range names {
		file := FileName(name)
		got, err := TypeNameFromFile(file)
		if err != nil {
			t.Fatalf("TypeNameFromFile(%q) failed: %v", file, err)
		}
		if got != name {
			t.Errorf("round trip %q -> %q -> %q", name, file, got)
		}
	}
}

func TestFileNameMapping(t *testing.T) {
	got := FileName("AWS::S3::Bucket")
	want := "AWS--S3--Bucket.json"
	if got != want {
		t.Errorf("FileName = %q, want %q", got, want)
	}
}

func TestTypeNameFromFileRejectsNonSchema(t *testing.T) {
	if _, err := TypeNameFromFile("README.md"); err == nil {
		t.Error("expected error for non-schema file name")
	}
}

func TestCanonicalizeStableUnderKeyOrder(t *testing.T) {
	a := []byte(`{"typeName":"AWS::S3::Bucket","properties":{"b":1,"a":2}}`)
	b := []byte(`{"properties":{"a":2,"b":1},"typeName":"AWS::S3::Bucket"}`)

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize(a) failed: %v", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("Canonicalize(b) failed: %v", err)
	}

	if !bytes.Equal(ca, cb) {
		t.Errorf("reordered documents canonicalize differently:\n%s\n---\n%s", ca, cb)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	raw := []byte(`{"z":[3,2,1],"a":{"nested":true},"s":"a<b"}`)

	once, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	twice, err := Canonicalize(once)
	if err != nil {
		t.Fatalf("Canonicalize of canonical form failed: %v", err)
	}

	if !bytes.Equal(once, twice) {
		t.Errorf("canonicalization is not idempotent:\n%s\n---\n%s", once, twice)
	}
}

func TestCanonicalizeRejectsInvalidJSON(t *testing.T) {
	if _, err := Canonicalize([]byte(`{"truncated":`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// Package schema provides the document model for mirrored resource-type
// schemas: canonical JSON serialization, the type-name to file-name mapping,
// and the provider metadata carried alongside each schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TypeNamespace is the namespace prefix of the resource types the mirror
// tracks. Types outside this namespace are skipped during enumeration.
const TypeNamespace = "AWS::"

// FileExt is the extension used for stored schema blobs.
const FileExt = ".json"

// separator is the namespace separator inside a type name. It is mapped to
// fileSeparator in file names because "::" is not filesystem-safe everywhere.
// The mapping is bijective: "--" never occurs inside a type-name segment.
const (
	separator     = "::"
	fileSeparator = "--"
)

// FileName returns the canonical file name for a type, e.g.
// "AWS::S3::Bucket" -> "AWS--S3--Bucket.json".
func FileName(typeName string) string {
	return strings.ReplaceAll(typeName, separator, fileSeparator) + FileExt
}

// TypeNameFromFile recovers the type name from a schema file name.
// It is the exact inverse of FileName.
func TypeNameFromFile(fileName string) (string, error) {
	stem, ok := strings.CutSuffix(fileName, FileExt)
	if !ok {
		return "", fmt.Errorf("not a schema file name: %s", fileName)
	}
	return strings.ReplaceAll(stem, fileSeparator, separator), nil
}

// Canonicalize normalizes a JSON document into its canonical form: object
// keys sorted, two-space indentation, trailing newline. Semantically equal
// documents always canonicalize to identical bytes, so byte comparison of
// canonical forms is structural comparison. Canonicalize is idempotent.
func Canonicalize(raw []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to canonicalize schema document: %w", err)
	}

	return buf.Bytes(), nil
}

// Metadata holds provider-supplied fields that accompany a schema but are
// not part of its content. Change detection never looks at these; the ledger
// records them per its configured policy.
type Metadata struct {
	// TimeCreated is when the provider says the type was first registered.
	// Nil when the provider did not report it.
	TimeCreated *time.Time `json:"time_created,omitempty"`

	// DeprecatedStatus is the provider's deprecation flag (e.g. "LIVE",
	// "DEPRECATED"). Empty when not reported.
	DeprecatedStatus string `json:"deprecation_status,omitempty"`
}

// IsZero reports whether no metadata field is populated.
func (m Metadata) IsZero() bool {
	return m.TimeCreated == nil && m.DeprecatedStatus == ""
}

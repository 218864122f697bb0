// Package catalog defines the remote registry client used to enumerate and
// fetch resource-type schemas, plus the AWS CloudFormation implementation.
//
// The rest of the system depends only on the Client interface; fetch and
// describe failures are per-type and callers are expected to skip and
// continue.
package catalog

import (
	"context"

	"github.com/schemadrift/schemadrift/internal/schema"
)

// TypeSummary identifies one resource type from the registry listing.
type TypeSummary struct {
	// TypeName is the namespaced type name, e.g. "AWS::S3::Bucket".
	TypeName string

	// Description is the provider's short description, when reported.
	Description string
}

// TypeDetail is the full fetch result for a single resource type.
type TypeDetail struct {
	// TypeName is the namespaced type name.
	TypeName string

	// Schema is the raw (non-canonical) JSON schema document.
	Schema []byte

	// Metadata carries the provider-supplied fields for the ledger.
	Metadata schema.Metadata
}

// Client enumerates and fetches resource-type schemas from a remote registry.
//
// ListTypes returns the complete current listing; a listing failure is fatal
// to a sync pass. DescribeType may fail independently per type.
type Client interface {
	// ListTypes returns summaries for every visible resource type.
	ListTypes(ctx context.Context) ([]TypeSummary, error)

	// DescribeType fetches the schema document and metadata for one type.
	DescribeType(ctx context.Context, typeName string) (*TypeDetail, error)
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"

	"github.com/schemadrift/schemadrift/internal/schema"
)

// AWS implements Client against the CloudFormation public type registry.
//
// Enumeration pages through ListTypes with Visibility=PUBLIC and
// Type=RESOURCE, filtered to the AWS:: namespace. Fetching uses DescribeType,
// whose Schema field is the JSON document for the resource type.
type AWS struct {
	cfn cloudformationiface.CloudFormationAPI
}

// NewAWS creates a registry client for the given region. An empty region
// defers to the SDK's usual resolution (environment, shared config).
func NewAWS(region string) (*AWS, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &AWS{cfn: cloudformation.New(sess)}, nil
}

// NewAWSWithAPI wraps an existing CloudFormation API client. Used by tests.
func NewAWSWithAPI(api cloudformationiface.CloudFormationAPI) *AWS {
	return &AWS{cfn: api}
}

// ListTypes implements Client.ListTypes.
func (a *AWS) ListTypes(ctx context.Context) ([]TypeSummary, error) {
	input := &cloudformation.ListTypesInput{
		Visibility: aws.String(cloudformation.VisibilityPublic),
		Type:       aws.String(cloudformation.RegistryTypeResource),
	}

	var summaries []TypeSummary
	err := a.cfn.ListTypesPagesWithContext(ctx, input,
		func(page *cloudformation.ListTypesOutput, _ bool) bool {
			for _, ts := range page.TypeSummaries {
				name := aws.StringValue(ts.TypeName)
				if !strings.HasPrefix(name, schema.TypeNamespace) {
					continue
				}
				summaries = append(summaries, TypeSummary{
					TypeName:    name,
					Description: aws.StringValue(ts.Description),
				})
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list resource types: %w", err)
	}

	return summaries, nil
}

// DescribeType implements Client.DescribeType.
func (a *AWS) DescribeType(ctx context.Context, typeName string) (*TypeDetail, error) {
	out, err := a.cfn.DescribeTypeWithContext(ctx, &cloudformation.DescribeTypeInput{
		Type:     aws.String(cloudformation.RegistryTypeResource),
		TypeName: aws.String(typeName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe type %s: %w", typeName, err)
	}

	if aws.StringValue(out.Schema) == "" {
		return nil, fmt.Errorf("describe type %s returned no schema", typeName)
	}

	return &TypeDetail{
		TypeName: typeName,
		Schema:   []byte(aws.StringValue(out.Schema)),
		Metadata: schema.Metadata{
			TimeCreated:      out.TimeCreated,
			DeprecatedStatus: aws.StringValue(out.DeprecatedStatus),
		},
	}, nil
}

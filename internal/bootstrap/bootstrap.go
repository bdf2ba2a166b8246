// Package bootstrap resolves the bootstrap stack's outputs: the asset
// bucket, the image repository and the deployment qualifier. The collector
// only reads these outputs; it never manages the bootstrap stack itself.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
)

// Output keys and parameter names the bootstrap stack is expected to carry.
const (
	outputBucketName     = "BucketName"
	outputRepositoryName = "ImageRepositoryName"
	parameterQualifier   = "Qualifier"
)

// DescribeStacksAPI is the subset of the CloudFormation API needed to read
// the bootstrap stack. Narrow by design so tests can inject fakes.
type DescribeStacksAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

var _ DescribeStacksAPI = (*cloudformation.Client)(nil)

// Info holds the bootstrap stack outputs the collector needs.
type Info struct {
	// BucketName is the S3 bucket holding file assets.
	BucketName string

	// RepositoryName is the ECR repository holding image assets.
	RepositoryName string

	// Qualifier disambiguates multiple bootstrap stacks in one account.
	Qualifier string
}

// Resolve reads the named bootstrap stack and extracts the asset bucket,
// image repository and qualifier. Any missing piece is an error: without
// them the collector cannot locate its stores, so the run cannot proceed.
func Resolve(ctx context.Context, client DescribeStacksAPI, stackName string) (Info, error) {
	out, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return Info{}, fmt.Errorf("describe bootstrap stack %q: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return Info{}, fmt.Errorf("bootstrap stack %q not found", stackName)
	}

	stack := out.Stacks[0]
	info := Info{}

	for _, o := range stack.Outputs {
		switch aws.ToString(o.OutputKey) {
		case outputBucketName:
			info.BucketName = aws.ToString(o.OutputValue)
		case outputRepositoryName:
			info.RepositoryName = aws.ToString(o.OutputValue)
		}
	}
	for _, p := range stack.Parameters {
		if aws.ToString(p.ParameterKey) == parameterQualifier {
			info.Qualifier = aws.ToString(p.ParameterValue)
		}
	}

	if info.BucketName == "" {
		return Info{}, fmt.Errorf("bootstrap stack %q has no %s output", stackName, outputBucketName)
	}
	if info.RepositoryName == "" {
		return Info{}, fmt.Errorf("bootstrap stack %q has no %s output", stackName, outputRepositoryName)
	}
	if info.Qualifier == "" {
		return Info{}, fmt.Errorf("bootstrap stack %q has no %s parameter", stackName, parameterQualifier)
	}
	return info, nil
}

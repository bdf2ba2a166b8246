package roots

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/assetgc-io/assetgc/internal/logging"
)

// assetHashPattern matches asset content hashes embedded in template
// bodies. Asset identifiers are hex SHA-256 digests.
var assetHashPattern = regexp.MustCompile(`[a-f0-9]{64}`)

// liveStackStatuses are the stack states whose templates can reference
// assets. Deleted stacks and stacks still under review carry no deployed
// template.
var liveStackStatuses = []types.StackStatus{
	types.StackStatusCreateComplete,
	types.StackStatusCreateInProgress,
	types.StackStatusUpdateComplete,
	types.StackStatusUpdateInProgress,
	types.StackStatusUpdateCompleteCleanupInProgress,
	types.StackStatusUpdateRollbackComplete,
	types.StackStatusUpdateRollbackInProgress,
	types.StackStatusRollbackComplete,
	types.StackStatusImportComplete,
	types.StackStatusImportInProgress,
}

// TemplateAPI is the subset of the CloudFormation API the scanner uses.
type TemplateAPI interface {
	ListStacks(ctx context.Context, params *cloudformation.ListStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListStacksOutput, error)
	GetTemplate(ctx context.Context, params *cloudformation.GetTemplateInput, optFns ...func(*cloudformation.Options)) (*cloudformation.GetTemplateOutput, error)
}

var _ TemplateAPI = (*cloudformation.Client)(nil)

// Scanner builds the root set by reading every deployed stack's template
// and extracting the asset hashes embedded in it.
type Scanner struct {
	client TemplateAPI
	log    *logging.Logger
}

// NewScanner creates a scanner over the given CloudFormation client.
func NewScanner(client TemplateAPI, log *logging.Logger) *Scanner {
	if log == nil {
		log = logging.Global()
	}
	return &Scanner{client: client, log: log}
}

// Scan lists every live stack and extracts asset hashes from its template.
// A stack whose template cannot be read is skipped and logged; one broken
// stack never blocks the root set build. A failure listing stacks is
// structural and aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (map[string]struct{}, error) {
	hashes := make(map[string]struct{})

	var token *string
	for {
		out, err := s.client.ListStacks(ctx, &cloudformation.ListStacksInput{
			NextToken:         token,
			StackStatusFilter: liveStackStatuses,
		})
		if err != nil {
			return nil, fmt.Errorf("list deployed stacks: %w", err)
		}

		for _, summary := range out.StackSummaries {
			name := aws.ToString(summary.StackName)
			tmpl, err := s.client.GetTemplate(ctx, &cloudformation.GetTemplateInput{
				StackName: aws.String(name),
			})
			if err != nil {
				s.log.Warnf("skipping unreadable stack template", map[string]any{
					"stack": name,
					"error": err.Error(),
				})
				continue
			}
			for _, hash := range assetHashPattern.FindAllString(aws.ToString(tmpl.TemplateBody), -1) {
				hashes[hash] = struct{}{}
			}
		}

		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return hashes, nil
}

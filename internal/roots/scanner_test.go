package roots

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/assetgc-io/assetgc/internal/logging"
)

type fakeTemplateAPI struct {
	stacks    []string          // one page
	templates map[string]string // by stack name
	listErr   error
	brokenSet map[string]bool // stacks whose GetTemplate fails
}

func (f *fakeTemplateAPI) ListStacks(_ context.Context, _ *cloudformation.ListStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.ListStacksOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &cloudformation.ListStacksOutput{}
	for _, name := range f.stacks {
		out.StackSummaries = append(out.StackSummaries, types.StackSummary{
			StackName:   aws.String(name),
			StackStatus: types.StackStatusCreateComplete,
		})
	}
	return out, nil
}

func (f *fakeTemplateAPI) GetTemplate(_ context.Context, in *cloudformation.GetTemplateInput, _ ...func(*cloudformation.Options)) (*cloudformation.GetTemplateOutput, error) {
	name := aws.ToString(in.StackName)
	if f.brokenSet[name] {
		return nil, errors.New("template unavailable")
	}
	return &cloudformation.GetTemplateOutput{
		TemplateBody: aws.String(f.templates[name]),
	}, nil
}

func testLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelDebug, Format: logging.FormatText, Output: buf})
}

func TestScanExtractsHashes(t *testing.T) {
	hashA := strings.Repeat("aa", 32)
	hashB := strings.Repeat("bb", 32)

	api := &fakeTemplateAPI{
		stacks: []string{"app-one", "app-two"},
		templates: map[string]string{
			"app-one": `{"S3Key":"` + hashA + `.zip"}`,
			"app-two": `{"Image":"123.dkr.ecr.us-east-1.amazonaws.com/repo:` + hashB + `"}`,
		},
	}

	var buf bytes.Buffer
	s := NewScanner(api, testLogger(&buf))
	hashes, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("got %d hashes, want 2: %v", len(hashes), hashes)
	}
	if _, ok := hashes[hashA]; !ok {
		t.Errorf("missing hash from app-one")
	}
	if _, ok := hashes[hashB]; !ok {
		t.Errorf("missing hash from app-two")
	}
}

func TestScanSkipsUnreadableStack(t *testing.T) {
	hashA := strings.Repeat("aa", 32)

	api := &fakeTemplateAPI{
		stacks: []string{"broken", "healthy"},
		templates: map[string]string{
			"healthy": `{"S3Key":"` + hashA + `.zip"}`,
		},
		brokenSet: map[string]bool{"broken": true},
	}

	var buf bytes.Buffer
	s := NewScanner(api, testLogger(&buf))
	hashes, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("one broken stack must not fail the scan: %v", err)
	}
	if _, ok := hashes[hashA]; !ok {
		t.Error("healthy stack's hash should still be extracted")
	}
	if !strings.Contains(buf.String(), "broken") {
		t.Error("skipped stack should be logged")
	}
}

func TestScanListFailureIsStructural(t *testing.T) {
	api := &fakeTemplateAPI{listErr: errors.New("throttled")}

	var buf bytes.Buffer
	s := NewScanner(api, testLogger(&buf))
	if _, err := s.Scan(context.Background()); err == nil {
		t.Fatal("list failure should abort the scan")
	}
}

func TestScanDeduplicatesAcrossStacks(t *testing.T) {
	hash := strings.Repeat("cc", 32)
	api := &fakeTemplateAPI{
		stacks: []string{"one", "two"},
		templates: map[string]string{
			"one": hash,
			"two": hash,
		},
	}

	var buf bytes.Buffer
	s := NewScanner(api, testLogger(&buf))
	hashes, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(hashes) != 1 {
		t.Errorf("got %d hashes, want 1 deduplicated", len(hashes))
	}
}

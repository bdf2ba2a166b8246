// Package ecr implements the registry interface using the AWS SDK for ECR.
package ecr

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/assetgc-io/assetgc/internal/registry"
)

// describeChunk is the largest number of image IDs DescribeImages and
// BatchGetImage accept per call.
const describeChunk = 100

// API is the subset of the ECR client the store uses. Narrow by design so
// tests can inject fakes.
type API interface {
	ListImages(ctx context.Context, params *ecr.ListImagesInput, optFns ...func(*ecr.Options)) (*ecr.ListImagesOutput, error)
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
	BatchGetImage(ctx context.Context, params *ecr.BatchGetImageInput, optFns ...func(*ecr.Options)) (*ecr.BatchGetImageOutput, error)
	PutImage(ctx context.Context, params *ecr.PutImageInput, optFns ...func(*ecr.Options)) (*ecr.PutImageOutput, error)
	BatchDeleteImage(ctx context.Context, params *ecr.BatchDeleteImageInput, optFns ...func(*ecr.Options)) (*ecr.BatchDeleteImageOutput, error)
}

var _ API = (*ecr.Client)(nil)

// Store implements registry.Store against an ECR repository.
type Store struct {
	client     API
	repository string
}

// New creates a store for the given repository using the provided client.
func New(client API, repository string) *Store {
	return &Store{client: client, repository: repository}
}

var _ registry.Store = (*Store)(nil)

// Repository returns the repository name.
func (s *Store) Repository() string {
	return s.repository
}

// ListPage returns one page of the repository listing. Each page is
// assembled from three calls joined by digest: ListImages for the raw
// references, DescribeImages for size, tags and push time, and
// BatchGetImage for the manifests.
func (s *Store) ListPage(ctx context.Context, token *string, max int32) (registry.Page, error) {
	listOut, err := s.client.ListImages(ctx, &ecr.ListImagesInput{
		RepositoryName: aws.String(s.repository),
		NextToken:      token,
		MaxResults:     aws.Int32(max),
	})
	if err != nil {
		return registry.Page{}, s.wrapError("ListPage", "", err)
	}

	// Multiple tags on one digest arrive as separate references;
	// coalesce before the describe calls.
	var digests []string
	seen := make(map[string]struct{})
	for _, id := range listOut.ImageIds {
		d := aws.ToString(id.ImageDigest)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		digests = append(digests, d)
	}

	images := make(map[string]*registry.Image, len(digests))
	for _, d := range digests {
		images[d] = &registry.Image{Digest: d}
	}

	for start := 0; start < len(digests); start += describeChunk {
		end := start + describeChunk
		if end > len(digests) {
			end = len(digests)
		}
		chunk := digests[start:end]

		ids := make([]types.ImageIdentifier, 0, len(chunk))
		for _, d := range chunk {
			ids = append(ids, types.ImageIdentifier{ImageDigest: aws.String(d)})
		}

		descOut, err := s.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
			RepositoryName: aws.String(s.repository),
			ImageIds:       ids,
		})
		if err != nil {
			return registry.Page{}, s.wrapError("ListPage", "", err)
		}
		for _, detail := range descOut.ImageDetails {
			img, ok := images[aws.ToString(detail.ImageDigest)]
			if !ok {
				continue
			}
			img.SizeBytes = aws.ToInt64(detail.ImageSizeInBytes)
			img.Tags = detail.ImageTags
			img.PushedAt = aws.ToTime(detail.ImagePushedAt)
		}

		getOut, err := s.client.BatchGetImage(ctx, &ecr.BatchGetImageInput{
			RepositoryName:     aws.String(s.repository),
			ImageIds:           ids,
			AcceptedMediaTypes: []string{"application/vnd.docker.distribution.manifest.v2+json", "application/vnd.oci.image.manifest.v1+json"},
		})
		if err != nil {
			return registry.Page{}, s.wrapError("ListPage", "", err)
		}
		for _, got := range getOut.Images {
			if got.ImageId == nil {
				continue
			}
			img, ok := images[aws.ToString(got.ImageId.ImageDigest)]
			if !ok {
				continue
			}
			if img.Manifest == "" {
				img.Manifest = aws.ToString(got.ImageManifest)
			}
		}
	}

	page := registry.Page{NextToken: listOut.NextToken}
	for _, d := range digests {
		page.Images = append(page.Images, *images[d])
	}
	return page, nil
}

// PutTag adds a tag alias pointing at the manifest.
func (s *Store) PutTag(ctx context.Context, manifest, tag string) error {
	_, err := s.client.PutImage(ctx, &ecr.PutImageInput{
		RepositoryName: aws.String(s.repository),
		ImageManifest:  aws.String(manifest),
		ImageTag:       aws.String(tag),
	})
	if err != nil {
		return s.wrapError("PutTag", tag, err)
	}
	return nil
}

// BatchDelete removes up to registry.MaxDeleteBatch image references.
func (s *Store) BatchDelete(ctx context.Context, ids []registry.ImageID) error {
	if len(ids) == 0 {
		return nil
	}

	imageIDs := make([]types.ImageIdentifier, 0, len(ids))
	for _, id := range ids {
		ref := types.ImageIdentifier{}
		if id.Digest != "" {
			ref.ImageDigest = aws.String(id.Digest)
		}
		if id.Tag != "" {
			ref.ImageTag = aws.String(id.Tag)
		}
		imageIDs = append(imageIDs, ref)
	}

	out, err := s.client.BatchDeleteImage(ctx, &ecr.BatchDeleteImageInput{
		RepositoryName: aws.String(s.repository),
		ImageIds:       imageIDs,
	})
	if err != nil {
		return s.wrapError("BatchDelete", "", err)
	}

	for _, failure := range out.Failures {
		// A missing image is fine: the sweep is repeatable and another
		// process may have deleted it first.
		if failure.FailureCode == types.ImageFailureCodeImageNotFound {
			continue
		}
		ref := ""
		if failure.ImageId != nil {
			ref = aws.ToString(failure.ImageId.ImageDigest)
			if ref == "" {
				ref = aws.ToString(failure.ImageId.ImageTag)
			}
		}
		return &registry.RegistryError{
			Op:  "BatchDelete",
			Ref: ref,
			Err: errors.New(aws.ToString(failure.FailureReason)),
		}
	}
	return nil
}

func (s *Store) wrapError(op, ref string, err error) error {
	if err == nil {
		return nil
	}

	var repoNotFound *types.RepositoryNotFoundException
	if errors.As(err, &repoNotFound) {
		return &registry.RegistryError{Op: op, Ref: ref, Err: registry.ErrRepositoryNotFound}
	}

	var imageNotFound *types.ImageNotFoundException
	if errors.As(err, &imageNotFound) {
		return &registry.RegistryError{Op: op, Ref: ref, Err: registry.ErrImageNotFound}
	}

	var imageExists *types.ImageAlreadyExistsException
	if errors.As(err, &imageExists) {
		return &registry.RegistryError{Op: op, Ref: ref, Err: registry.ErrTagExists}
	}

	var tagExists *types.ImageTagAlreadyExistsException
	if errors.As(err, &tagExists) {
		return &registry.RegistryError{Op: op, Ref: ref, Err: registry.ErrTagExists}
	}

	return &registry.RegistryError{Op: op, Ref: ref, Err: err}
}

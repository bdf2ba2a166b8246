// Package s3 implements the objectstore interface using the AWS SDK for
// S3-compatible storage.
package s3

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/assetgc-io/assetgc/internal/objectstore"
)

// API is the subset of the S3 client the store uses. Narrow by design so
// tests can inject fakes.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var _ API = (*s3.Client)(nil)

// Store implements objectstore.Store against an S3 bucket.
type Store struct {
	client API
	bucket string
}

// New creates a store for the given bucket using the provided client.
func New(client API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

var _ objectstore.Store = (*Store)(nil)

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// ListPage returns one page of the bucket listing.
func (s *Store) ListPage(ctx context.Context, token *string, max int32) (objectstore.Page, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:            aws.String(s.bucket),
		ContinuationToken: token,
		MaxKeys:           aws.Int32(max),
	})
	if err != nil {
		return objectstore.Page{}, s.wrapError("ListPage", "", err)
	}

	page := objectstore.Page{NextToken: out.NextContinuationToken}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, objectstore.Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	return page, nil
}

// GetTagging returns the tag set of an object.
func (s *Store) GetTagging(ctx context.Context, key string) ([]objectstore.Tag, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrapError("GetTagging", key, err)
	}

	tags := make([]objectstore.Tag, 0, len(out.TagSet))
	for _, t := range out.TagSet {
		tags = append(tags, objectstore.Tag{
			Key:   aws.ToString(t.Key),
			Value: aws.ToString(t.Value),
		})
	}
	return tags, nil
}

// PutTagging replaces the entire tag set of an object.
func (s *Store) PutTagging(ctx context.Context, key string, tags []objectstore.Tag) error {
	tagSet := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		tagSet = append(tagSet, types.Tag{
			Key:   aws.String(t.Key),
			Value: aws.String(t.Value),
		})
	}

	_, err := s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return s.wrapError("PutTagging", key, err)
	}
	return nil
}

// DeleteBatch removes up to objectstore.MaxDeleteBatch objects in one call.
func (s *Store) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return s.wrapError("DeleteBatch", "", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return &objectstore.ObjectError{
			Op:  "DeleteBatch",
			Key: aws.ToString(first.Key),
			Err: errors.New(aws.ToString(first.Message)),
		}
	}
	return nil
}

func (s *Store) wrapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrNotFound}
		case http.StatusForbidden:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrAccessDenied}
		}
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrBucketNotFound}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrNotFound}
	}

	return &objectstore.ObjectError{Op: op, Key: key, Err: err}
}

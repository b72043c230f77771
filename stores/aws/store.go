package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"dispatch-gateway/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store. Each document is one JSON object
// under <collection>/<id>.
func NewStore(ctx context.Context, bucketName string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}, nil
}

func documentKey(collection, id string) (string, error) {
	for _, part := range []string{collection, id} {
		if part == "" || part == "." || part == ".." || path.Base(part) != part {
			return "", fmt.Errorf("invalid key segment %q", part)
		}
	}
	return path.Join(collection, id), nil
}

func (s *s3Store) List(ctx context.Context, collection string) ([]*core.Document, error) {
	docs := []*core.Document{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(collection + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
		}
		for _, object := range page.Contents {
			doc, err := s.fetch(ctx, aws.ToString(object.Key), collection)
			if err != nil {
				logrus.WithError(err).WithField("key", aws.ToString(object.Key)).Warn("Failed to read document object, skipping")
				continue
			}
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *s3Store) Get(ctx context.Context, collection, id string) (*core.Document, error) {
	key, err := documentKey(collection, id)
	if err != nil {
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
	}
	return s.fetch(ctx, key, collection)
}

func (s *s3Store) Create(ctx context.Context, doc *core.Document) (string, error) {
	id := ulid.Make().String()
	key, err := documentKey(doc.Collection, id)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	doc.ID, doc.CreatedAt, doc.UpdatedAt = id, now, now
	if err := s.put(ctx, key, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *s3Store) Update(ctx context.Context, doc *core.Document) error {
	existing, err := s.Get(ctx, doc.Collection, doc.ID)
	if err != nil {
		return err
	}
	key, _ := documentKey(doc.Collection, doc.ID)

	doc.CreatedAt = existing.CreatedAt
	doc.CreatedBy = existing.CreatedBy
	doc.UpdatedAt = time.Now().UTC()
	return s.put(ctx, key, doc)
}

func (s *s3Store) Delete(ctx context.Context, collection, id string) error {
	// DeleteObject succeeds on missing keys, so probe first.
	if _, err := s.Get(ctx, collection, id); err != nil {
		return err
	}
	key, _ := documentKey(collection, id)

	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) Count(ctx context.Context, collection string) (int, error) {
	count := 0
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(collection + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count collection %s: %w", collection, err)
		}
		count += len(page.Contents)
	}
	return count, nil
}

func (s *s3Store) Close(ctx context.Context) error {
	return nil
}

func (s *s3Store) fetch(ctx context.Context, key, collection string) (*core.Document, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("document %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %w", err)
	}

	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	doc.Collection = collection
	return &doc, nil
}

func (s *s3Store) put(ctx context.Context, key string, doc *core.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", key, err)
	}
	return nil
}

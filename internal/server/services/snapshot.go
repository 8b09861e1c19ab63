package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	sc "github.com/dmitrijs2005/cartographer/internal/server/config"
	"github.com/dmitrijs2005/cartographer/internal/server/tree"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// SnapshotExpiry bounds the lifetime of a presigned snapshot link.
const SnapshotExpiry = 15 * time.Minute

// Snapshot is the document stored for a map export.
type Snapshot struct {
	ID         int64        `json:"id"`
	Ref        string       `json:"ref"`
	Title      string       `json:"title"`
	Publish    bool         `json:"publish"`
	Created    time.Time    `json:"created"`
	Modified   time.Time    `json:"modified"`
	ExportedAt time.Time    `json:"exported_at"`
	Children   []*tree.Node `json:"children"`
}

// SnapshotResult locates a stored snapshot.
type SnapshotResult struct {
	Key        string `json:"key"`
	URL        string `json:"url"`
	Components int    `json:"components"`
}

// SnapshotExporter writes a map's nested tree to S3-compatible storage, so
// a new downstream client can start from a full copy before following the
// incremental feeds.
type SnapshotExporter struct {
	catalog *CatalogService
	config  *sc.Config
	logger  logging.Logger
	now     func() time.Time
}

func NewSnapshotExporter(catalog *CatalogService, config *sc.Config, logger logging.Logger) *SnapshotExporter {
	return &SnapshotExporter{
		catalog: catalog,
		config:  config,
		logger:  logger.With("module", "snapshot"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SnapshotKey returns a fresh object key for a map snapshot taken at d.
func SnapshotKey(mapID int64, d time.Time) string {
	return fmt.Sprintf("maps/%d/%d/%d/%d/%v.json", mapID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (e *SnapshotExporter) s3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(e.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			e.config.S3RootUser,
			e.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(e.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Export stores the current state of the map and returns a presigned GET
// link valid for SnapshotExpiry.
func (e *SnapshotExporter) Export(ctx context.Context, mapID int64) (*SnapshotResult, error) {
	detail, err := e.catalog.GetMap(ctx, mapID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	m := detail.Map
	body, err := json.Marshal(Snapshot{
		ID:         m.ID,
		Ref:        m.Ref(),
		Title:      m.Title,
		Publish:    m.Publish,
		Created:    m.Created,
		Modified:   m.Modified,
		ExportedAt: now,
		Children:   detail.Tree,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	client, err := e.s3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	bucket := e.config.S3Bucket
	key := SnapshotKey(mapID, now)
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(SnapshotExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign snapshot: %w", err)
	}

	count := len(tree.Flatten(detail.Tree))
	e.logger.Info(ctx, "map snapshot exported", "map", mapID, "key", key, "components", count, "bytes", len(body))
	return &SnapshotResult{Key: key, URL: req.URL, Components: count}, nil
}

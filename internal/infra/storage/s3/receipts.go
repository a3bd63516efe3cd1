package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"staybook/internal/app/policies"
)

// ReceiptArchive stores confirmation receipts as JSON objects in an
// S3-compatible bucket. Receipts are an audit artifact; this archive never
// sits on the booking transaction's critical path.
type ReceiptArchive struct {
	bucket         string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// NewReceiptArchive configures the archive using the provided endpoint and credentials.
func NewReceiptArchive(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*ReceiptArchive, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	return &ReceiptArchive{
		bucket: bucket,
		client: minioClient,
		logger: logger,
	}, nil
}

func (a *ReceiptArchive) Store(ctx context.Context, receipt policies.Receipt) (string, error) {
	if receipt.BookingID == "" {
		return "", errors.New("s3: receipt booking id is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("s3: encode receipt: %w", err)
	}
	key := fmt.Sprintf("receipts/%s.json", receipt.BookingID)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put receipt: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	if a.logger != nil {
		a.logger.Info("receipt archived", "bucket", a.bucket, "key", key, "booking_id", receipt.BookingID)
	}
	return location, nil
}

func (a *ReceiptArchive) ensureBucket(ctx context.Context) error {
	a.bucketInitOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return a.bucketInitErr
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.ReceiptArchive = (*ReceiptArchive)(nil)

package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// SpacesClient stores invoice documents in an S3 compatible bucket (DigitalOcean Spaces, MinIO, S3)
type SpacesClient struct {
	s3Client *s3.S3
	bucket   string
	endpoint string
	cdnURL   string
}

// SpacesConfig holds configuration for Spaces client
type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	// Endpoint may carry a scheme; bare hosts are treated as https
	Endpoint string
	CDNURL   string
	// PathStyle addresses the bucket in the path instead of the host
	PathStyle bool
}

// Configured reports whether enough settings exist to build a client
func (c SpacesConfig) Configured() bool {
	return c.Bucket != "" && c.Region != "" && c.AccessKey != "" && c.SecretKey != ""
}

// NewSpacesClient creates a new Spaces client
func NewSpacesClient(config SpacesConfig) (*SpacesClient, error) {
	awsConfig := &aws.Config{
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.PathStyle),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spaces session: %w", err)
	}

	return &SpacesClient{
		s3Client: s3.New(sess),
		bucket:   config.Bucket,
		endpoint: strings.TrimPrefix(strings.TrimPrefix(config.Endpoint, "https://"), "http://"),
		cdnURL:   strings.TrimRight(config.CDNURL, "/"),
	}, nil
}

// InvoiceKey is the object key of a transaction's invoice
func InvoiceKey(tranID string) string {
	return fmt.Sprintf("invoices/%s.html", tranID)
}

// PutInvoice uploads a rendered invoice and returns its public URL
func (s *SpacesClient) PutInvoice(ctx context.Context, tranID string, html []byte) (string, error) {
	key := InvoiceKey(tranID)
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(html),
		ACL:         aws.String("public-read"),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload invoice: %w", err)
	}
	return s.GetFileURL(key), nil
}

// GetFileURL returns the public URL for a file
func (s *SpacesClient) GetFileURL(key string) string {
	if s.cdnURL != "" {
		return fmt.Sprintf("%s/%s", s.cdnURL, key)
	}
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, s.endpoint, key)
}

package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"tasnim.dev/role-grant/internal/cleanup"
)

type S3API interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Client archives cleanup reports as JSON objects under a bucket prefix.
type Client struct {
	api    S3API
	bucket string
	prefix string
}

func NewClient(api S3API, bucket, prefix string) *Client {
	return &Client{api: api, bucket: bucket, prefix: prefix}
}

// Put writes report to {prefix}/{yyyy}/{mm}/{dd}/{role}-{unixnano}.json,
// partitioned by the report's finish time.
func (c *Client) Put(ctx context.Context, report *cleanup.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report for %s: %w", report.RoleName, err)
	}

	key := ReportKey(c.prefix, report)
	_, err = c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("PutObject(%s/%s): %w", c.bucket, key, err)
	}
	return nil
}

func ReportKey(prefix string, report *cleanup.Report) string {
	ts := report.FinishedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	name := fmt.Sprintf("%s-%d.json", report.RoleName, ts.UnixNano())
	return path.Join(prefix, ts.Format("2006/01/02"), name)
}

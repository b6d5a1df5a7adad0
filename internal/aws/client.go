package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsddbsdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsiamsdk "github.com/aws/aws-sdk-go-v2/service/iam"
	awss3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	awssnssdk "github.com/aws/aws-sdk-go-v2/service/sns"
	"golang.org/x/time/rate"

	awsddb "tasnim.dev/role-grant/internal/aws/dynamodb"
	awsiam "tasnim.dev/role-grant/internal/aws/iam"
	awss3 "tasnim.dev/role-grant/internal/aws/s3"
	awssns "tasnim.dev/role-grant/internal/aws/sns"
)

// ServiceOptions names the resources the clients operate on.
type ServiceOptions struct {
	TableName     string
	TopicARN      string
	ArchiveBucket string
	ArchivePrefix string
	// CallInterval spaces destructive IAM calls. Zero disables pacing.
	CallInterval time.Duration
}

type ServiceClient struct {
	Config    aws.Config
	AccountID string
	IAM       *awsiam.Client
	Store     *awsddb.Store
	Notifier  *awssns.Client
	// Archive is nil when no archive bucket is configured.
	Archive *awss3.Client
}

func NewServiceClient(ctx context.Context, profile, region string, opts ServiceOptions) (*ServiceClient, error) {
	cfg, err := LoadConfig(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewServiceClientFromConfig(ctx, cfg, opts), nil
}

func NewServiceClientFromConfig(ctx context.Context, cfg aws.Config, opts ServiceOptions) *ServiceClient {
	var iamOpts []awsiam.Option
	if opts.CallInterval > 0 {
		iamOpts = append(iamOpts, awsiam.WithThrottle(rate.NewLimiter(rate.Every(opts.CallInterval), 1)))
	}

	sc := &ServiceClient{
		Config:    cfg,
		AccountID: GetAccountID(ctx, cfg),
		IAM:       awsiam.NewClient(awsiamsdk.NewFromConfig(cfg), iamOpts...),
		Store:     awsddb.NewStore(awsddbsdk.NewFromConfig(cfg), opts.TableName),
		Notifier:  awssns.NewClient(awssnssdk.NewFromConfig(cfg), opts.TopicARN),
	}
	if opts.ArchiveBucket != "" {
		sc.Archive = awss3.NewClient(awss3sdk.NewFromConfig(cfg), opts.ArchiveBucket, opts.ArchivePrefix)
	}
	return sc
}

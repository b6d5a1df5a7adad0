package iam

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"tasnim.dev/role-grant/internal/utils"
)

type IAMAPI interface {
	GetRole(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *awsiam.AttachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.AttachRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *awsiam.ListAttachedRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedRolePoliciesOutput, error)
	DetachRolePolicy(ctx context.Context, params *awsiam.DetachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachRolePolicyOutput, error)
	ListRolePolicies(ctx context.Context, params *awsiam.ListRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListRolePoliciesOutput, error)
	DeleteRolePolicy(ctx context.Context, params *awsiam.DeleteRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRolePolicyOutput, error)
	ListInstanceProfilesForRole(ctx context.Context, params *awsiam.ListInstanceProfilesForRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.ListInstanceProfilesForRoleOutput, error)
	RemoveRoleFromInstanceProfile(ctx context.Context, params *awsiam.RemoveRoleFromInstanceProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveRoleFromInstanceProfileOutput, error)
	DeleteRole(ctx context.Context, params *awsiam.DeleteRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error)
	ListPolicies(ctx context.Context, params *awsiam.ListPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListPoliciesOutput, error)
}

// Throttle paces destructive calls. *rate.Limiter satisfies it.
type Throttle interface {
	Wait(ctx context.Context) error
}

type Client struct {
	api      IAMAPI
	throttle Throttle
}

type Option func(*Client)

// WithThrottle makes every teardown call wait on t first.
func WithThrottle(t Throttle) Option {
	return func(c *Client) { c.throttle = t }
}

func NewClient(api IAMAPI, opts ...Option) *Client {
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureRole creates roleName with the given trust policy unless it already
// exists. It reports whether the role was created by this call.
func (c *Client) EnsureRole(ctx context.Context, roleName, trustPolicy string) (bool, error) {
	_, err := c.api.GetRole(ctx, &awsiam.GetRoleInput{RoleName: aws.String(roleName)})
	if err == nil {
		return false, nil
	}
	if !IsNotFound(err) {
		return false, fmt.Errorf("GetRole(%s): %w", roleName, err)
	}

	_, err = c.api.CreateRole(ctx, &awsiam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	})
	if err != nil {
		// Lost a create race with a concurrent approval.
		if IsAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("CreateRole(%s): %w", roleName, err)
	}
	return true, nil
}

// AttachPolicy binds a managed policy to the role. Attaching an
// already-attached policy is a no-op on the IAM side.
func (c *Client) AttachPolicy(ctx context.Context, roleName, policyARN string) error {
	_, err := c.api.AttachRolePolicy(ctx, &awsiam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return fmt.Errorf("AttachRolePolicy(%s, %s): %w", roleName, policyARN, err)
	}
	return nil
}

func (c *Client) ListAttachedRolePolicies(ctx context.Context, roleName string) ([]IAMAttachedPolicy, error) {
	var policies []IAMAttachedPolicy
	var marker *string

	for {
		out, err := c.api.ListAttachedRolePolicies(ctx, &awsiam.ListAttachedRolePoliciesInput{
			RoleName: aws.String(roleName),
			Marker:   marker,
		})
		if err != nil {
			return nil, fmt.Errorf("ListAttachedRolePolicies(%s): %w", roleName, err)
		}

		for _, p := range out.AttachedPolicies {
			policies = append(policies, IAMAttachedPolicy{
				Name: aws.ToString(p.PolicyName),
				ARN:  aws.ToString(p.PolicyArn),
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return policies, nil
}

func (c *Client) ListRolePolicyNames(ctx context.Context, roleName string) ([]string, error) {
	var names []string
	var marker *string

	for {
		out, err := c.api.ListRolePolicies(ctx, &awsiam.ListRolePoliciesInput{
			RoleName: aws.String(roleName),
			Marker:   marker,
		})
		if err != nil {
			return nil, fmt.Errorf("ListRolePolicies(%s): %w", roleName, err)
		}
		names = append(names, out.PolicyNames...)

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return names, nil
}

func (c *Client) ListInstanceProfileNames(ctx context.Context, roleName string) ([]string, error) {
	var names []string
	var marker *string

	for {
		out, err := c.api.ListInstanceProfilesForRole(ctx, &awsiam.ListInstanceProfilesForRoleInput{
			RoleName: aws.String(roleName),
			Marker:   marker,
		})
		if err != nil {
			return nil, fmt.Errorf("ListInstanceProfilesForRole(%s): %w", roleName, err)
		}
		for _, p := range out.InstanceProfiles {
			names = append(names, aws.ToString(p.InstanceProfileName))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return names, nil
}

func (c *Client) DetachRolePolicy(ctx context.Context, roleName, policyARN string) Result {
	if err := c.wait(ctx); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	_, err := c.api.DetachRolePolicy(ctx, &awsiam.DetachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyARN),
	})
	return resultOf(wrapErr("DetachRolePolicy", roleName, policyARN, err))
}

func (c *Client) DeleteRolePolicy(ctx context.Context, roleName, policyName string) Result {
	if err := c.wait(ctx); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	_, err := c.api.DeleteRolePolicy(ctx, &awsiam.DeleteRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(policyName),
	})
	return resultOf(wrapErr("DeleteRolePolicy", roleName, policyName, err))
}

func (c *Client) RemoveRoleFromInstanceProfile(ctx context.Context, profileName, roleName string) Result {
	if err := c.wait(ctx); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	_, err := c.api.RemoveRoleFromInstanceProfile(ctx, &awsiam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	return resultOf(wrapErr("RemoveRoleFromInstanceProfile", roleName, profileName, err))
}

func (c *Client) DeleteRole(ctx context.Context, roleName string) Result {
	if err := c.wait(ctx); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	_, err := c.api.DeleteRole(ctx, &awsiam.DeleteRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		err = fmt.Errorf("DeleteRole(%s): %w", roleName, err)
	}
	return resultOf(err)
}

// ListPoliciesPage fetches a single page of IAM policies in the given scope
// ("AWS", "Local" or "All").
func (c *Client) ListPoliciesPage(ctx context.Context, scope string, marker *string) ([]IAMPolicy, *string, error) {
	if scope == "" {
		scope = string(iamtypes.PolicyScopeTypeAws)
	}
	out, err := c.api.ListPolicies(ctx, &awsiam.ListPoliciesInput{
		Scope:  iamtypes.PolicyScopeType(scope),
		Marker: marker,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ListPolicies: %w", err)
	}

	policies := make([]IAMPolicy, 0, len(out.Policies))
	for _, p := range out.Policies {
		arn := aws.ToString(p.Arn)
		name := aws.ToString(p.PolicyName)
		if name == "" {
			name = utils.ShortName(arn)
		}
		policies = append(policies, IAMPolicy{Name: name, ARN: arn})
	}

	var nextMarker *string
	if out.IsTruncated {
		nextMarker = out.Marker
	}
	return policies, nextMarker, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.throttle == nil {
		return nil
	}
	if err := c.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	return nil
}

func wrapErr(op, roleName, target string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s(%s, %s): %w", op, roleName, target, err)
}

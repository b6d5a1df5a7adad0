package iam

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockIAMAPI struct {
	getRoleFunc                       func(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error)
	createRoleFunc                    func(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error)
	attachRolePolicyFunc              func(ctx context.Context, params *awsiam.AttachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.AttachRolePolicyOutput, error)
	listAttachedRolePoliciesFunc      func(ctx context.Context, params *awsiam.ListAttachedRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedRolePoliciesOutput, error)
	detachRolePolicyFunc              func(ctx context.Context, params *awsiam.DetachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachRolePolicyOutput, error)
	listRolePoliciesFunc              func(ctx context.Context, params *awsiam.ListRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListRolePoliciesOutput, error)
	deleteRolePolicyFunc              func(ctx context.Context, params *awsiam.DeleteRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRolePolicyOutput, error)
	listInstanceProfilesForRoleFunc   func(ctx context.Context, params *awsiam.ListInstanceProfilesForRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.ListInstanceProfilesForRoleOutput, error)
	removeRoleFromInstanceProfileFunc func(ctx context.Context, params *awsiam.RemoveRoleFromInstanceProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveRoleFromInstanceProfileOutput, error)
	deleteRoleFunc                    func(ctx context.Context, params *awsiam.DeleteRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error)
	listPoliciesFunc                  func(ctx context.Context, params *awsiam.ListPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListPoliciesOutput, error)
}

func (m *mockIAMAPI) GetRole(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error) {
	return m.getRoleFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) CreateRole(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error) {
	return m.createRoleFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) AttachRolePolicy(ctx context.Context, params *awsiam.AttachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.AttachRolePolicyOutput, error) {
	return m.attachRolePolicyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListAttachedRolePolicies(ctx context.Context, params *awsiam.ListAttachedRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedRolePoliciesOutput, error) {
	return m.listAttachedRolePoliciesFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DetachRolePolicy(ctx context.Context, params *awsiam.DetachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachRolePolicyOutput, error) {
	return m.detachRolePolicyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListRolePolicies(ctx context.Context, params *awsiam.ListRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListRolePoliciesOutput, error) {
	return m.listRolePoliciesFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DeleteRolePolicy(ctx context.Context, params *awsiam.DeleteRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRolePolicyOutput, error) {
	return m.deleteRolePolicyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListInstanceProfilesForRole(ctx context.Context, params *awsiam.ListInstanceProfilesForRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.ListInstanceProfilesForRoleOutput, error) {
	return m.listInstanceProfilesForRoleFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) RemoveRoleFromInstanceProfile(ctx context.Context, params *awsiam.RemoveRoleFromInstanceProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveRoleFromInstanceProfileOutput, error) {
	return m.removeRoleFromInstanceProfileFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DeleteRole(ctx context.Context, params *awsiam.DeleteRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error) {
	return m.deleteRoleFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListPolicies(ctx context.Context, params *awsiam.ListPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListPoliciesOutput, error) {
	return m.listPoliciesFunc(ctx, params, optFns...)
}

func noSuchEntity() error {
	return &iamtypes.NoSuchEntityException{Message: awssdk.String("The role cannot be found.")}
}

type countingThrottle struct {
	waits int
	err   error
}

func (t *countingThrottle) Wait(ctx context.Context) error {
	t.waits++
	return t.err
}

func TestEnsureRole_CreatesWhenMissing(t *testing.T) {
	var created *awsiam.CreateRoleInput
	mock := &mockIAMAPI{
		getRoleFunc: func(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error) {
			return nil, noSuchEntity()
		},
		createRoleFunc: func(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error) {
			created = params
			return &awsiam.CreateRoleOutput{}, nil
		},
	}

	client := NewClient(mock)
	ok, err := client.EnsureRole(context.Background(), "r1", `{"trust":true}`)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, created)
	assert.Equal(t, "r1", awssdk.ToString(created.RoleName))
	assert.Equal(t, `{"trust":true}`, awssdk.ToString(created.AssumeRolePolicyDocument))
}

func TestEnsureRole_ExistingRoleUntouched(t *testing.T) {
	mock := &mockIAMAPI{
		getRoleFunc: func(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error) {
			return &awsiam.GetRoleOutput{Role: &iamtypes.Role{RoleName: params.RoleName}}, nil
		},
		createRoleFunc: func(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error) {
			t.Fatal("CreateRole must not be called for an existing role")
			return nil, nil
		},
	}

	ok, err := NewClient(mock).EnsureRole(context.Background(), "r1", "{}")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureRole_CreateRaceIsSuccess(t *testing.T) {
	mock := &mockIAMAPI{
		getRoleFunc: func(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error) {
			return nil, noSuchEntity()
		},
		createRoleFunc: func(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error) {
			return nil, &iamtypes.EntityAlreadyExistsException{Message: awssdk.String("exists")}
		},
	}

	ok, err := NewClient(mock).EnsureRole(context.Background(), "r1", "{}")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureRole_GetRoleError(t *testing.T) {
	mock := &mockIAMAPI{
		getRoleFunc: func(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		},
	}

	_, err := NewClient(mock).EnsureRole(context.Background(), "r1", "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetRole(r1)")
}

func TestAttachPolicy_FailsLoudly(t *testing.T) {
	mock := &mockIAMAPI{
		attachRolePolicyFunc: func(ctx context.Context, params *awsiam.AttachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.AttachRolePolicyOutput, error) {
			return nil, noSuchEntity()
		},
	}

	err := NewClient(mock).AttachPolicy(context.Background(), "r1", "arn:aws:iam::aws:policy/Missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "arn:aws:iam::aws:policy/Missing")
}

func TestListAttachedRolePolicies_Paginates(t *testing.T) {
	calls := 0
	mock := &mockIAMAPI{
		listAttachedRolePoliciesFunc: func(ctx context.Context, params *awsiam.ListAttachedRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedRolePoliciesOutput, error) {
			calls++
			if params.Marker == nil {
				return &awsiam.ListAttachedRolePoliciesOutput{
					AttachedPolicies: []iamtypes.AttachedPolicy{
						{PolicyName: awssdk.String("ReadOnlyAccess"), PolicyArn: awssdk.String("arn:aws:iam::aws:policy/ReadOnlyAccess")},
					},
					IsTruncated: true,
					Marker:      awssdk.String("page2"),
				}, nil
			}
			assert.Equal(t, "page2", *params.Marker)
			return &awsiam.ListAttachedRolePoliciesOutput{
				AttachedPolicies: []iamtypes.AttachedPolicy{
					{PolicyName: awssdk.String("S3Read"), PolicyArn: awssdk.String("arn:aws:iam::123456789012:policy/S3Read")},
				},
			}, nil
		},
	}

	policies, err := NewClient(mock).ListAttachedRolePolicies(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, policies, 2)
	assert.Equal(t, "ReadOnlyAccess", policies[0].Name)
	assert.Equal(t, "arn:aws:iam::123456789012:policy/S3Read", policies[1].ARN)
}

func TestListRolePolicyNames_Paginates(t *testing.T) {
	mock := &mockIAMAPI{
		listRolePoliciesFunc: func(ctx context.Context, params *awsiam.ListRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListRolePoliciesOutput, error) {
			if params.Marker == nil {
				return &awsiam.ListRolePoliciesOutput{PolicyNames: []string{"inline-a"}, IsTruncated: true, Marker: awssdk.String("m")}, nil
			}
			return &awsiam.ListRolePoliciesOutput{PolicyNames: []string{"inline-b"}}, nil
		},
	}

	names, err := NewClient(mock).ListRolePolicyNames(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"inline-a", "inline-b"}, names)
}

func TestListInstanceProfileNames_RoleMissing(t *testing.T) {
	mock := &mockIAMAPI{
		listInstanceProfilesForRoleFunc: func(ctx context.Context, params *awsiam.ListInstanceProfilesForRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.ListInstanceProfilesForRoleOutput, error) {
			return nil, noSuchEntity()
		},
	}

	_, err := NewClient(mock).ListInstanceProfileNames(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestTeardownResults(t *testing.T) {
	throttle := &countingThrottle{}
	mock := &mockIAMAPI{
		detachRolePolicyFunc: func(ctx context.Context, params *awsiam.DetachRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachRolePolicyOutput, error) {
			return &awsiam.DetachRolePolicyOutput{}, nil
		},
		deleteRolePolicyFunc: func(ctx context.Context, params *awsiam.DeleteRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRolePolicyOutput, error) {
			return nil, noSuchEntity()
		},
		removeRoleFromInstanceProfileFunc: func(ctx context.Context, params *awsiam.RemoveRoleFromInstanceProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveRoleFromInstanceProfileOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"}
		},
		deleteRoleFunc: func(ctx context.Context, params *awsiam.DeleteRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error) {
			return nil, &iamtypes.DeleteConflictException{Message: awssdk.String("must detach all policies first")}
		},
	}

	client := NewClient(mock, WithThrottle(throttle))
	ctx := context.Background()

	assert.Equal(t, Removed, client.DetachRolePolicy(ctx, "r1", "p1").Outcome)
	assert.Equal(t, NotFound, client.DeleteRolePolicy(ctx, "r1", "inline").Outcome)

	res := client.RemoveRoleFromInstanceProfile(ctx, "profile", "r1")
	assert.Equal(t, Failed, res.Outcome)
	assert.Contains(t, res.Err.Error(), "Rate exceeded")
	assert.False(t, res.OK())

	res = client.DeleteRole(ctx, "r1")
	assert.Equal(t, Failed, res.Outcome)
	assert.Contains(t, res.Err.Error(), "DeleteRole(r1)")

	assert.Equal(t, 4, throttle.waits)
}

func TestTeardown_ThrottleCancelled(t *testing.T) {
	throttle := &countingThrottle{err: context.Canceled}
	mock := &mockIAMAPI{
		deleteRoleFunc: func(ctx context.Context, params *awsiam.DeleteRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error) {
			t.Fatal("DeleteRole must not be called when the throttle fails")
			return nil, nil
		},
	}

	res := NewClient(mock, WithThrottle(throttle)).DeleteRole(context.Background(), "r1")
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.Is(res.Err, context.Canceled))
}

func TestListPoliciesPage(t *testing.T) {
	mock := &mockIAMAPI{
		listPoliciesFunc: func(ctx context.Context, params *awsiam.ListPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListPoliciesOutput, error) {
			assert.Equal(t, iamtypes.PolicyScopeTypeAws, params.Scope)
			return &awsiam.ListPoliciesOutput{
				Policies: []iamtypes.Policy{
					{PolicyName: awssdk.String("ReadOnlyAccess"), Arn: awssdk.String("arn:aws:iam::aws:policy/ReadOnlyAccess")},
					{Arn: awssdk.String("arn:aws:iam::aws:policy/job-function/ViewOnlyAccess")},
				},
				IsTruncated: true,
				Marker:      awssdk.String("next"),
			}, nil
		},
	}

	policies, next, err := NewClient(mock).ListPoliciesPage(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, IAMPolicy{Name: "ReadOnlyAccess", ARN: "arn:aws:iam::aws:policy/ReadOnlyAccess"}, policies[0])
	assert.Equal(t, "ViewOnlyAccess", policies[1].Name)
	require.NotNil(t, next)
	assert.Equal(t, "next", *next)
}

func TestTrustPolicy(t *testing.T) {
	doc, err := TrustPolicy("")
	require.NoError(t, err)

	var parsed struct {
		Version   string
		Statement []struct {
			Effect    string
			Principal map[string]string
			Action    string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	assert.Equal(t, "2012-10-17", parsed.Version)
	require.Len(t, parsed.Statement, 1)
	assert.Equal(t, "Allow", parsed.Statement[0].Effect)
	assert.Equal(t, "ec2.amazonaws.com", parsed.Statement[0].Principal["Service"])
	assert.Equal(t, "sts:AssumeRole", parsed.Statement[0].Action)

	doc, err = TrustPolicy("lambda.amazonaws.com")
	require.NoError(t, err)
	assert.Contains(t, doc, `"lambda.amazonaws.com"`)
}

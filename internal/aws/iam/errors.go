package iam

import (
	"errors"

	"github.com/aws/smithy-go"
)

const (
	codeNoSuchEntity        = "NoSuchEntity"
	codeEntityAlreadyExists = "EntityAlreadyExists"
)

// IsNotFound reports whether err is an IAM NoSuchEntity error.
func IsNotFound(err error) bool {
	return hasCode(err, codeNoSuchEntity)
}

// IsAlreadyExists reports whether err is an IAM EntityAlreadyExists error.
func IsAlreadyExists(err error) bool {
	return hasCode(err, codeEntityAlreadyExists)
}

func hasCode(err error, code string) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}

func resultOf(err error) Result {
	switch {
	case err == nil:
		return Result{Outcome: Removed}
	case IsNotFound(err):
		return Result{Outcome: NotFound}
	default:
		return Result{Outcome: Failed, Err: err}
	}
}

package iam

import (
	"encoding/json"
	"fmt"
)

const DefaultTrustPrincipal = "ec2.amazonaws.com"

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal"`
	Action    string            `json:"Action"`
}

// TrustPolicy returns an assume-role policy document allowing the given
// service principal to assume the role.
func TrustPolicy(service string) (string, error) {
	if service == "" {
		service = DefaultTrustPrincipal
	}
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    "sts:AssumeRole",
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding trust policy: %w", err)
	}
	return string(b), nil
}

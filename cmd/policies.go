package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tasnim.dev/role-grant/internal/api"
	"tasnim.dev/role-grant/internal/aws/iam"
)

func NewPoliciesCmd() *cobra.Command {
	var flags commonFlags
	var scope string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List the IAM policies a requester can choose from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			client, err := serviceClient(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			policies, err := allPolicies(cmd.Context(), client.IAM, scope)
			if err != nil {
				return err
			}
			return printPolicies(cmd.OutOrStdout(), policies, asJSON)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&scope, "scope", "s", "AWS", "Policy scope: AWS, Local or All")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

// allPolicies follows markers until the catalog is exhausted.
func allPolicies(ctx context.Context, catalog api.PolicyCatalog, scope string) ([]iam.IAMPolicy, error) {
	var all []iam.IAMPolicy
	var marker *string
	for {
		page, next, err := catalog.ListPoliciesPage(ctx, scope, marker)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == nil {
			return all, nil
		}
		marker = next
	}
}

func printPolicies(w io.Writer, policies []iam.IAMPolicy, asJSON bool) error {
	if asJSON {
		if policies == nil {
			policies = []iam.IAMPolicy{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(policies)
	}
	for _, p := range policies {
		fmt.Fprintf(w, "%-60s %s\n", p.Name, p.ARN)
	}
	return nil
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	awsddb "tasnim.dev/role-grant/internal/aws/dynamodb"
	"tasnim.dev/role-grant/internal/cleanup"
	"tasnim.dev/role-grant/internal/grant"
	"tasnim.dev/role-grant/internal/utils"
)

func NewCleanupCmd() *cobra.Command {
	var flags commonFlags
	var eventPath string
	var roles []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down expired roles from a stream event or by name",
		Long: "Runs the cleanup cascade (detach managed policies, delete inline policies,\n" +
			"remove instance profiles, delete role) for every removal record in a\n" +
			"DynamoDB Streams event, or for the roles named with --role.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (eventPath == "") == (len(roles) == 0) {
				return errors.New("exactly one of --event or --role is required")
			}

			var batch []cleanup.Event
			if eventPath != "" {
				ev, err := readStreamEvent(eventPath, cmd.InOrStdin())
				if err != nil {
					return err
				}
				decoded, err := awsddb.DecodeStreamEvent(ev)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping undecodable records: %v\n", err)
				}
				batch = decoded
			}
			for _, role := range roles {
				batch = append(batch, cleanup.Removal(grant.RoleRequest{RoleName: role}))
			}

			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			client, err := serviceClient(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			reports := newCascade(cfg, client, logger).Process(cmd.Context(), batch)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, renderReports(reports))
			}

			failed := 0
			for _, r := range reports {
				if r.Failed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d roles finished with failures; rerun to retry", failed, len(reports))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&eventPath, "event", "e", "", "DynamoDB Streams event JSON file, or - for stdin")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to tear down directly (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")

	return cmd
}

func readStreamEvent(path string, stdin io.Reader) (events.DynamoDBEvent, error) {
	var ev events.DynamoDBEvent
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return ev, fmt.Errorf("reading event: %w", err)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("parsing event: %w", err)
	}
	return ev, nil
}

func renderReports(reports []*cleanup.Report) string {
	if len(reports) == 0 {
		return "No roles to clean up.\n"
	}

	db := utils.NewDetailBuilder(26, lipgloss.NewStyle().Bold(true))
	for i, r := range reports {
		if i > 0 {
			db.Blank()
		}
		db.Section(r.RoleName)
		if len(r.RequestIDs) > 0 {
			db.Row("Requests", strings.Join(r.RequestIDs, ", "))
		}
		db.Row("Started", utils.TimeOrDash(r.StartedAt, utils.DateTimeSec))
		db.Row("Finished", utils.TimeOrDash(r.FinishedAt, utils.DateTimeSec))
		db.Row("Role deleted", yesNo(r.RoleDeleted))
		for _, s := range r.Steps {
			db.List(string(s.Step), stepLines(s))
		}
	}
	return db.String()
}

func stepLines(s cleanup.StepReport) []string {
	var lines []string
	for _, res := range s.Removed {
		lines = append(lines, "removed "+res)
	}
	for _, res := range s.Missing {
		lines = append(lines, "already gone "+res)
	}
	failed := make([]string, 0, len(s.Failed))
	for res := range s.Failed {
		failed = append(failed, res)
	}
	sort.Strings(failed)
	for _, res := range failed {
		lines = append(lines, fmt.Sprintf("FAILED %s: %s", res, s.Failed[res]))
	}
	return lines
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

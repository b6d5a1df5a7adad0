package cmd

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	awsddb "tasnim.dev/role-grant/internal/aws/dynamodb"
	"tasnim.dev/role-grant/internal/cleanup"
)

func NewLambdaCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Run the cleanup cascade as a DynamoDB Streams Lambda handler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			client, err := serviceClient(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			lambda.Start(streamHandler(newCascade(cfg, client, logger), logger))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// streamHandler never fails the invocation. Cleanup failures are logged and
// archived; a failed return would make Lambda replay the whole shard batch.
func streamHandler(cascade *cleanup.Cascade, logger *slog.Logger) func(context.Context, events.DynamoDBEvent) error {
	return func(ctx context.Context, ev events.DynamoDBEvent) error {
		decoded, err := awsddb.DecodeStreamEvent(ev)
		if err != nil {
			logger.ErrorContext(ctx, "undecodable stream records skipped", "error", err)
		}
		reports := cascade.Process(ctx, decoded)

		failed := 0
		for _, r := range reports {
			if r.Failed() {
				failed++
			}
		}
		logger.InfoContext(ctx, "stream batch processed",
			"records", len(ev.Records),
			"roles", len(reports),
			"failed", failed,
		)
		return nil
	}
}

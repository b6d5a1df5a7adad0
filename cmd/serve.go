package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tasnim.dev/role-grant/internal/api"
	awsiam "tasnim.dev/role-grant/internal/aws/iam"
	"tasnim.dev/role-grant/internal/cleanup"
	"tasnim.dev/role-grant/internal/grant"
	"tasnim.dev/role-grant/internal/store/sqlite"
)

func NewServeCmd() *cobra.Command {
	var flags commonFlags
	var listen string
	var local bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the request, decide and policies endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.ListenAddr = listen
			}
			if err := cfg.Validate(local); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := serviceClient(ctx, cfg, logger)
			if err != nil {
				return err
			}
			trust, err := awsiam.TrustPolicy(cfg.TrustPrincipal)
			if err != nil {
				return err
			}

			var (
				store    grant.Store    = client.Store
				notifier grant.Notifier = client.Notifier
			)
			if local {
				db, err := sqlite.Open(ctx, cfg.Local.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				store = db
				notifier = grant.LogNotifier{Logger: logger}

				cascade := newCascade(cfg, client, logger)
				sweeper := sqlite.NewSweeper(db, cfg.Local.SweepInterval, func(ctx context.Context, expired []grant.RoleRequest) {
					events := make([]cleanup.Event, 0, len(expired))
					for _, req := range expired {
						events = append(events, cleanup.Removal(req))
					}
					cascade.Process(ctx, events)
				}, logger)
				go sweeper.Run(ctx)
				logger.Info("local mode", "database", cfg.Local.Database, "sweep_interval", cfg.Local.SweepInterval)
			}

			submitter := grant.NewSubmitter(store, notifier, cfg.BaseURL, cfg.DefaultTTL, logger)
			decider := grant.NewDecider(store, client.IAM, trust, logger)
			server := api.NewServer(submitter, decider, client.IAM, logger)
			return server.ListenAndServe(ctx, cfg.ListenAddr)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides listen_addr)")
	cmd.Flags().BoolVar(&local, "local", false, "Use a SQLite store with a TTL sweeper instead of DynamoDB and SNS")

	return cmd
}

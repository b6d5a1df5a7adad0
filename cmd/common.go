package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	awsclient "tasnim.dev/role-grant/internal/aws"
	"tasnim.dev/role-grant/internal/cleanup"
	"tasnim.dev/role-grant/internal/config"
	"tasnim.dev/role-grant/internal/logging"
)

type commonFlags struct {
	configPath string
	profile    string
	region     string
	logLevel   string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file (default ~/.config/role-grant/config.yaml)")
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "AWS profile to use")
	cmd.Flags().StringVarP(&f.region, "region", "r", "", "AWS region to use")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// load reads the config, applies flag overrides and builds the logger.
// Logs go to stderr so command output on stdout stays parseable.
func (f *commonFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Merge(f.profile, f.region)
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("configuring logging: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serviceClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*awsclient.ServiceClient, error) {
	client, err := awsclient.NewServiceClient(ctx, cfg.Profile, cfg.Region, awsclient.ServiceOptions{
		TableName:     cfg.TableName,
		TopicARN:      cfg.TopicARN,
		ArchiveBucket: cfg.Cleanup.ArchiveBucket,
		ArchivePrefix: cfg.Cleanup.ArchivePrefix,
		CallInterval:  cfg.Cleanup.CallInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing AWS client: %w", err)
	}
	logger.Info("aws session ready",
		"profile", cfg.Profile,
		"region", client.Config.Region,
		"account_id", client.AccountID,
	)
	return client, nil
}

func newCascade(cfg *config.Config, client *awsclient.ServiceClient, logger *slog.Logger) *cleanup.Cascade {
	opts := []cleanup.Option{cleanup.WithWorkers(cfg.Cleanup.Workers)}
	if client.Archive != nil {
		opts = append(opts, cleanup.WithSink(client.Archive))
	}
	return cleanup.NewCascade(client.IAM, logger, opts...)
}

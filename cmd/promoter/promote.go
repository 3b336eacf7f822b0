package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"model-stage-promoter/internal/adapters/primary/console"
	"model-stage-promoter/internal/adapters/secondary/tracking"
	"model-stage-promoter/internal/core/services"
)

func newPromoteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Promote the latest model version (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromote(cmd, ctx)
		},
	}
}

// runPromote exits zero whenever the run completes, including when the stage
// could not be reached; only errors before the transition are returned.
func runPromote(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := tracking.Open(cmd.Context(), &cfg.Tracking)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("failed to close tracking client")
		}
	}()

	svc := services.NewPromoterService(client, services.VerifyPolicy{
		Delay:       cfg.Verify.Delay,
		Attempts:    cfg.Verify.Attempts,
		MaxInterval: cfg.Verify.MaxInterval,
	})
	rep := console.NewReporter(cmd.OutOrStdout(), cfg.UI.URL)

	result, err := svc.Run(cmd.Context(), services.PromoteRequest{
		ModelName:       cfg.Promotion.ModelName,
		Stage:           cfg.Promotion.Stage,
		ArchiveExisting: cfg.Promotion.ArchiveExisting,
	}, rep)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"model":   result.ModelName,
		"version": result.Version,
		"stage":   result.Stage,
		"outcome": result.Outcome,
	}).Info("promotion finished")
	return nil
}

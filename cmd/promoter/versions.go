package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"model-stage-promoter/internal/adapters/primary/console"
	"model-stage-promoter/internal/adapters/secondary/tracking"
	"model-stage-promoter/internal/core/services"
)

func newVersionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the versions of a model and their stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			svc := services.NewPromoterService(client, services.VerifyPolicy{})
			versions, err := svc.ListVersions(cmd.Context(), cfg.Promotion.ModelName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(versions) == 0 {
				fmt.Fprintf(out, "No versions found for model %s\n", cfg.Promotion.ModelName)
				return nil
			}
			fmt.Fprintf(out, "Model: %s\n", cfg.Promotion.ModelName)
			fmt.Fprintln(out, console.RenderVersions(versions))
			return nil
		},
	}
}

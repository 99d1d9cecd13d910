package main

import (
	"context"
	"fmt"
	"time"

	"evcore/internal/fallback"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registered units, actions, and subsystem health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			parts, err := buildAgent(cfg)
			if err != nil {
				return err
			}
			defer parts.close()

			fmt.Printf("evcore %s\n\n", version)

			fmt.Printf("units: %d registered\n", parts.reg.Len())
			for _, cat := range parts.reg.Categories() {
				fmt.Printf("  %s: %d\n", cat, len(parts.reg.List(cat)))
			}

			actions := parts.engine.ListActions()
			fmt.Printf("\nactions: %d registered\n", len(actions))
			for _, a := range actions {
				state := "on"
				if !a.Enabled {
					state = "off"
				}
				fmt.Printf("  [%s/%s] %s\n", a.Priority, state, a.Name)
			}

			fmt.Printf("\nmemory: ")
			if parts.store == nil {
				fmt.Println("disabled")
			} else {
				recs, err := parts.store.All(cmd.Context(), "")
				if err != nil {
					fmt.Printf("error: %v\n", err)
				} else {
					fmt.Printf("%d entries at %s\n", len(recs), cfg.Memory.DBPath)
				}
			}

			fmt.Printf("fallback: ")
			if !cfg.Fallback.Enabled {
				fmt.Println("disabled")
			} else {
				fb := fallback.NewOllama(fallback.OllamaConfig{
					APIBase: cfg.Fallback.APIBase,
					Model:   cfg.Fallback.Model,
					Logger:  logger,
				})
				ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
				defer cancel()
				if err := fb.Healthy(ctx); err != nil {
					fmt.Printf("unreachable (%v)\n", err)
				} else {
					fmt.Printf("ok (%s, model %s)\n", cfg.Fallback.APIBase, cfg.Fallback.Model)
				}
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func execCmd() *cobra.Command {
	var analyze bool
	cmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Dispatch one command and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			parts, err := buildAgent(cfg)
			if err != nil {
				return err
			}
			defer parts.close()

			command := strings.Join(args, " ")
			ctx := cmd.Context()

			out, err := parts.dispatcher.Dispatch(ctx, command, nil)
			if err != nil {
				printJSON(map[string]string{"error": err.Error()})
				return fmt.Errorf("dispatch failed")
			}
			printJSON(map[string]any{"result": out})

			if parts.store != nil {
				if err := parts.store.LogInteraction(ctx, command, fmt.Sprint(out), "exec"); err != nil {
					logger.Warn("cannot log interaction", "err", err)
				}
			}

			if analyze {
				matched := parts.engine.Analyze(command)
				if len(matched) > 0 {
					results := parts.engine.Execute(ctx, matched, map[string]any{"input": command})
					printJSON(map[string]any{"proactive": results})
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&analyze, "analyze", false, "also run the proactive trigger pass on the command text")
	return cmd
}

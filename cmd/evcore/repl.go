package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session: dispatch commands, see proactive matches",
		RunE:  runRepl,
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	parts, err := buildAgent(cfg)
	if err != nil {
		return err
	}
	defer parts.close()

	ctx := cmd.Context()
	fmt.Printf("evcore %s — %d units registered. Type 'help' for commands, 'exit' to quit.\n", version, parts.reg.Len())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println("help        show this help")
			fmt.Println("units       list registered units")
			fmt.Println("actions     list proactive actions")
			fmt.Println("memory      list stored memories")
			fmt.Println("exit        quit the session")
			fmt.Println("anything else is dispatched as a command")
			continue
		case "units", "tools":
			for _, u := range parts.reg.List("") {
				alias := ""
				if len(u.Aliases) > 0 {
					alias = " (" + strings.Join(u.Aliases, ", ") + ")"
				}
				fmt.Printf("  [%s] %s%s — %s\n", u.Category, u.Name, alias, u.Description)
			}
			continue
		case "actions":
			for _, a := range parts.engine.ListActions() {
				state := "on"
				if !a.Enabled {
					state = "off"
				}
				fmt.Printf("  [%s/%s] %s — %s\n", a.Priority, state, a.Name, a.Description)
			}
			continue
		case "memory":
			if parts.store == nil {
				fmt.Println("memory store disabled")
				continue
			}
			recs, err := parts.store.All(ctx, "")
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			for _, r := range recs {
				fmt.Printf("  %s = %v [%s]\n", r.Key, r.Value, r.Category)
			}
			continue
		}

		out, err := parts.dispatcher.Dispatch(ctx, line, nil)
		if err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			printJSON(out)
		}

		if parts.store != nil {
			if err := parts.store.LogInteraction(ctx, line, fmt.Sprint(out), "repl"); err != nil {
				logger.Warn("cannot log interaction", "err", err)
			}
		}

		// Proactive pass over the raw input.
		if matched := parts.engine.Analyze(line); len(matched) > 0 {
			results := parts.engine.Execute(ctx, matched, map[string]any{"input": line})
			for _, r := range results {
				if r.Error != "" {
					fmt.Printf("proactive %s: error: %s\n", r.Action, r.Error)
				} else {
					fmt.Printf("proactive %s: %v\n", r.Action, r.Result)
				}
			}
		}
	}
	return scanner.Err()
}

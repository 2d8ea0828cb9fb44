package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/registry"
)

func newToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and run the built-in tools",
	}
	cmd.AddCommand(newToolsListCmd(a), newToolsSearchCmd(a), newToolsExecCmd(a))
	return cmd
}

func newToolsListCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := newRegistry(a.cfg)
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), reg.List(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func newToolsSearchCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tools by id, name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newRegistry(a.cfg)
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), reg.Search(args[0]), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func newToolsExecCmd(a *app) *cobra.Command {
	var params string
	cmd := &cobra.Command{
		Use:   "exec <tool-id>",
		Short: "Execute a tool with JSON parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newRegistry(a.cfg)
			if err != nil {
				return err
			}
			input := map[string]any{}
			if strings.TrimSpace(params) != "" {
				if err := json.Unmarshal([]byte(params), &input); err != nil {
					return fmt.Errorf("invalid --params: %w", err)
				}
			}
			timeout := a.cfg.Chat.ToolTimeout
			if timeout <= 0 {
				timeout = chatcore.DefaultToolTimeout
			}
			ctx, cancel := context.WithTimeout(a.logCtx, timeout)
			defer cancel()
			out, err := reg.Execute(ctx, args[0], input)
			if err != nil {
				return fmt.Errorf("tool execution failed: %s", registry.FailureMessage(err))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&params, "params", "{}", "tool parameters as a JSON object")
	return cmd
}

type toolRow struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Category    string         `json:"category,omitempty" yaml:"category,omitempty"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

func printTools(w io.Writer, defs []registry.Definition, output string) error {
	rows := make([]toolRow, 0, len(defs))
	for _, def := range defs {
		s := registry.Serialize(def)
		rows = append(rows, toolRow{ID: s.ID, Name: s.Name, Category: def.Category, Description: s.Description, Parameters: s.Parameters})
	}
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "NAME", "CATEGORY", "DESCRIPTION")
		for _, r := range rows {
			t.Row(r.ID, r.Name, r.Category, truncate(r.Description, 60))
		}
		_, err := fmt.Fprintln(w, t.Render())
		return err
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/abstract-engine/internal/history"
	"github.com/pdiddy/abstract-engine/internal/project"
	"github.com/pdiddy/abstract-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded graphical abstract runs for a project folder",
	Long: `History reads the run ledger in <folder>/graphical_abstract/history.db
and lists past runs, newest first, with their verdict and artifact
path. Use --export to rewrite the full YAML trail.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	folder, _ := cmd.Flags().GetString("folder")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	export, _ := cmd.Flags().GetBool("export")

	workDir := filepath.Join(folder, project.WorkDirName)
	if _, err := os.Stat(workDir); err != nil {
		return fmt.Errorf("no run ledger for %s: %w", folder, err)
	}

	store, err := history.NewStore(workDir, types.HistoryConfig{MaxResults: limit})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if export {
		if err := store.ExportYAML(ctx); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", filepath.Join(workDir, "history.yaml"))
		return nil
	}

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-28s  %-8s  %-18s  %s\n",
		"ID", "Started", "Model", "Verdict", "Reason", "Artifact")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, r := range runs {
		verdict := "rejected"
		if r.Accepted {
			verdict = "accepted"
		}
		model := r.Model
		if len(model) > 28 {
			model = model[:25] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-28s  %-8s  %-18s  %s\n",
			r.ID, r.StartedAt, model, verdict, r.Reason, r.ArtifactPath)
	}

	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

func init() {
	historyCmd.Flags().String("folder", "", "project folder whose run ledger to read")
	historyCmd.Flags().Int("limit", 0, "maximum runs to list (0 = use default)")
	historyCmd.Flags().Bool("json", false, "output runs as JSON")
	historyCmd.Flags().Bool("export", false, "rewrite graphical_abstract/history.yaml from the ledger")
	historyCmd.MarkFlagRequired("folder")

	rootCmd.AddCommand(historyCmd)
}

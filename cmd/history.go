/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/adaptran/internal/textstat"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past adaptation workflows",
	Long:  `List, inspect, and delete the workflows recorded in the history database.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListWorkflows(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list workflows: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No workflows in history.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tLANGUAGE\tLEVEL\tSTATUS\tCYCLES\tTEXT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04"),
				r.Request.TargetLanguage, r.Request.ProficiencyLevel,
				r.Status, r.Metrics.RevisionCycles,
				textstat.Excerpt(r.Request.OriginalText, 40))
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a workflow with its phase records as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := db.GetWorkflow(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get workflow: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a workflow by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteWorkflow(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete workflow: %w", err)
		}
		fmt.Printf("Deleted workflow: %s\n", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all workflows from history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearWorkflows(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Cleared %d workflows from history.\n", n)
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history and cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Workflows:      %d\n", stats.Workflows)
		fmt.Printf("  completed:    %d\n", stats.CompletedWorkflows)
		fmt.Printf("  failed:       %d\n", stats.FailedWorkflows)
		fmt.Printf("Cache entries:  %d\n", stats.CacheEntries)
		fmt.Printf("  active:       %d\n", stats.ActiveCacheEntries)
		fmt.Printf("Cache hits:     %d\n", stats.CacheHits)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum workflows to list (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatsCmd)
}

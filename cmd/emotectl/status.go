package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusPending bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ingestion progress",
	Long:  `Counts eligible registry entries and how many of them have a published record.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusPending, "pending", false, "list entries without a published record")
	rootCmd.AddCommand(statusCmd)
}

type pendingEntry struct {
	Ref  string `json:"ref"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ingestionStatus struct {
	Entries   int            `json:"entries"`
	Eligible  int            `json:"eligible"`
	Published int            `json:"published"`
	Pending   []pendingEntry `json:"pending,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	status := ingestionStatus{Entries: env.catalog.Len()}
	pendingCount := 0

	for entry := range env.catalog.Eligible() {
		status.Eligible++
		ok, err := env.published.IsPublished(ctx, entry.ID)
		if err != nil {
			return err
		}
		if ok {
			status.Published++
			continue
		}
		pendingCount++
		if statusPending {
			status.Pending = append(status.Pending, pendingEntry{Ref: entry.Ref, ID: entry.ID, Name: entry.Name})
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, status)
	}
	fmt.Fprintf(out, "Entries:   %d\n", status.Entries)
	fmt.Fprintf(out, "Eligible:  %d\n", status.Eligible)
	fmt.Fprintf(out, "Published: %d\n", status.Published)
	fmt.Fprintf(out, "Pending:   %d\n", pendingCount)
	for _, p := range status.Pending {
		fmt.Fprintf(out, "  %s %s (%s)\n", p.ID, p.Name, p.Ref)
	}
	return nil
}

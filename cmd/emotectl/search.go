package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/search"
)

var searchPage string

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search published emotes",
	Long: `Runs the same case-insensitive literal substring match the inline bot
uses. Without a query every published emote matches.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchPage, "page", "p", "", "page token (base 36)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	index := search.NewIndex(env.catalog, env.published, nil)

	page, err := index.Search(commandContext(cmd), query, searchPage)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, page)
	}
	if len(page.Results) == 0 {
		fmt.Fprintf(out, "No results on page %d.\n", page.Page)
		return nil
	}
	fmt.Fprintf(out, "Page %d (%d results)\n\n", page.Page, len(page.Results))
	for i, r := range page.Results {
		fmt.Fprintf(out, "  [%d] %s (%s)\n", i+1, r.Title, r.KindName)
		fmt.Fprintf(out, "      %s  %s\n", r.ID, r.FileReference)
	}
	if len(page.Results) == search.PageSize {
		fmt.Fprintf(out, "\nNext page: --page %s\n", page.NextPageToken)
	}
	return nil
}

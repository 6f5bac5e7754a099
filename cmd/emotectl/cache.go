package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
)

var cacheCmd = &cobra.Command{
	Use:   "cache [url]",
	Short: "Show the cached download for a source URL",
	Long: `Looks up the download cache keys for the exact URL. An entry counts as
cached only when both the bytes and the content type are present.`,
	Args: cobra.ExactArgs(1),
	RunE: runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}

type cacheEntry struct {
	URL         string `json:"url"`
	Cached      bool   `json:"cached"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

func runCache(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	url := args[0]

	data, err := env.store.GetOptional(ctx, kvstore.Key("download", url, "data"))
	if err != nil {
		return err
	}
	fileType, err := env.store.GetOptional(ctx, kvstore.Key("download", url, "file_type"))
	if err != nil {
		return err
	}

	entry := cacheEntry{
		URL:         url,
		Cached:      data != nil && fileType != nil,
		Size:        len(data),
		ContentType: string(fileType),
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, entry)
	}
	if !entry.Cached {
		fmt.Fprintf(out, "%s: not cached\n", url)
		return nil
	}
	fmt.Fprintf(out, "%s: %d bytes, %s\n", url, entry.Size, entry.ContentType)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/published"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
)

var (
	configPath   string
	registryPath string
	jsonOutput   bool
)

// environment is the state every subcommand reads. Tests install one
// directly instead of loading config from disk.
type environment struct {
	catalog   *catalog.Catalog
	store     kvstore.Store
	published *published.Index
}

var env *environment

var rootCmd = &cobra.Command{
	Use:               "emotectl",
	Short:             "Inspect emote relay state",
	SilenceUsage:      true,
	PersistentPreRunE: setupEnvironment,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/development.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "registry path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
}

func setupEnvironment(cmd *cobra.Command, _ []string) error {
	if env != nil {
		return nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if registryPath != "" {
		cfg.Registry.Path = registryPath
	}
	// stdout carries command output only.
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")

	cat, err := catalog.Load(cfg.Registry.Path)
	if err != nil {
		return err
	}
	store, err := kvstore.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	cobra.OnFinalize(func() { store.Close() })

	env = &environment{
		catalog:   cat,
		store:     store,
		published: published.NewIndex(store),
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return nil
}

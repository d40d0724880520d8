package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate counts from the cache database",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(command *cobra.Command, arguments []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := command.Context()
	stats, err := env.repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("files:    %d (%s on disk)\n", stats.Files, humanize.Bytes(uint64(stats.BytesOnDisk)))
	fmt.Printf("versions: %d\n", stats.Versions)
	fmt.Printf("works:    %d\n", stats.Works)

	targets, err := env.repo.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("stats: list targets: %w", err)
	}
	for _, target := range targets {
		paths, err := env.repo.ListPathsForTarget(ctx, target)
		if err != nil {
			return fmt.Errorf("stats: list paths for %s: %w", target, err)
		}
		fmt.Printf("  %-20s %d files\n", target, len(paths))
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ao3vault/vault/internal/cache"
)

var dedupConfiguration struct {
	target  string
	cleanup bool
}

var dedupCommand = &cobra.Command{
	Use:   "dedup",
	Short: "Report (and optionally clean up) duplicate content and orphaned versions",
	Args:  cobra.NoArgs,
	RunE:  runDedup,
}

func init() {
	flags := dedupCommand.Flags()
	flags.StringVar(&dedupConfiguration.target, "target", "", "Restrict content-hash duplicate reporting to one backend")
	flags.BoolVar(&dedupConfiguration.cleanup, "cleanup", false, "Delete orphaned versions after reporting")
}

func runDedup(command *cobra.Command, arguments []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		contentGroups []cache.DuplicateGroup
		err2          error
	)
	if dedupConfiguration.target != "" {
		contentGroups, err2 = env.repo.DuplicateContentHashesInTarget(ctx, dedupConfiguration.target)
	} else {
		contentGroups, err2 = env.repo.DuplicateContentHashesAcrossTargets(ctx)
	}
	if err2 != nil {
		return fmt.Errorf("dedup: duplicate content hashes: %w", err2)
	}

	fmt.Println("duplicate content hashes (same document stored at multiple paths):")
	for _, g := range contentGroups {
		fmt.Printf("  %s  x%d\n", g.Key, g.Count)
	}

	workGroups, err := env.repo.DuplicateWorkIDs(ctx)
	if err != nil {
		return fmt.Errorf("dedup: duplicate work ids: %w", err)
	}
	fmt.Println("work ids with multiple versions (download history):")
	for _, g := range workGroups {
		fmt.Printf("  %s  x%d\n", g.Key, g.Count)
	}

	if dedupConfiguration.cleanup {
		removed, err := env.repo.DeleteOrphanedVersions(ctx)
		if err != nil {
			return fmt.Errorf("dedup: delete orphaned versions: %w", err)
		}
		fmt.Printf("removed %d orphaned version(s)\n", removed)
	}

	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ao3vault/vault/internal/template"
)

var doctorCommand = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, backend connectivity, and cache health",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(command *cobra.Command, arguments []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	healthy := true
	check := func(ok bool, format string, v ...interface{}) {
		status := "ok"
		if !ok {
			status = "FAIL"
			healthy = false
		}
		fmt.Printf("[%s] %s\n", status, fmt.Sprintf(format, v...))
	}

	check(env.db.PingContext(ctx) == nil, "cache database reachable at %s", env.cfg.CacheDatabase)

	if env.cfg.Organize.Template != "" {
		_, templateErr := template.New(env.cfg.Organize.Template)
		check(templateErr == nil, "organize template compiles")
		if templateErr != nil {
			fmt.Printf("       %v\n", templateErr)
		}
	} else {
		fmt.Println("[skip] no organize template configured")
	}

	names := env.registry.Names()
	if len(names) == 0 {
		check(false, "at least one backend declared in %s", rootConfiguration.configPath)
	}
	for _, name := range names {
		backend, _ := env.registry.Get(name)
		_, statErr := backend.List(ctx, "")
		check(statErr == nil, "backend %q reachable", name)
		if statErr != nil {
			fmt.Printf("       %v\n", statErr)
		}
	}

	orphanCount, err := countOrphans(ctx, env)
	if err != nil {
		check(false, "count orphaned versions")
	} else if orphanCount > 0 {
		fmt.Printf("[info] %d orphaned version(s); run `vaultctl dedup --cleanup` to remove\n", orphanCount)
	} else {
		check(true, "no orphaned versions")
	}

	if !healthy {
		return fmt.Errorf("doctor: one or more checks failed")
	}
	return nil
}

// countOrphans counts orphaned versions without deleting them, by running
// DeleteOrphanedVersions in dry-run mode against a throwaway repository
// handle sharing the same connection pool.
func countOrphans(ctx context.Context, env *environment) (int64, error) {
	dryRunRepo := *env.repo
	dryRunRepo.DryRun = true
	return dryRunRepo.DeleteOrphanedVersions(ctx)
}

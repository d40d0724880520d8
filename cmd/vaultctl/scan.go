package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ao3vault/vault/internal/scan"
)

var scanConfiguration struct {
	prefix string
}

var scanCommand = &cobra.Command{
	Use:   "scan <backend>",
	Short: "Discover and hash files on a backend, populating the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	flags := scanCommand.Flags()
	flags.StringVar(&scanConfiguration.prefix, "prefix", "", "Restrict the scan to paths under this prefix")
}

func runScan(command *cobra.Command, arguments []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	backend, err := env.resolveBackend(arguments[0])
	if err != nil {
		return err
	}

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		scanned      int
		cached       int
		recalculated int
		processed    int
		failed       int
	)

	for event := range scan.Stream(ctx, backend, env.repo, scanConfiguration.prefix) {
		switch event.Kind {
		case scan.Started:
			env.logger.Infof("scanning %s", backend.Name())
		case scan.DiscoveryComplete:
			env.logger.Infof("discovered %d files", event.Total)
		case scan.Scanned:
			scanned++
			if event.Err != nil {
				failed++
				env.logger.Errorf("%s: %v", event.Path, event.Err)
				continue
			}
			switch event.Result.Effort {
			case scan.Cached:
				cached++
			case scan.Recalculated:
				recalculated++
			case scan.Processed:
				processed++
			}
			env.logger.Debugf("%s: %s", event.Path, event.Result.Effort)
		}
	}

	fmt.Printf("scanned %d files (%d cached, %d recalculated, %d processed, %d failed)\n",
		scanned, cached, recalculated, processed, failed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to scan", failed)
	}
	return nil
}

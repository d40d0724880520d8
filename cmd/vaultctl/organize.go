package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ao3vault/vault/internal/organize"
	"github.com/ao3vault/vault/internal/template"
)

var organizeCommand = &cobra.Command{
	Use:   "organize <backend>",
	Short: "Relocate cached files on a backend to their template-derived paths",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrganize,
}

func runOrganize(command *cobra.Command, arguments []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	backend, err := env.resolveBackend(arguments[0])
	if err != nil {
		return err
	}

	if env.cfg.Organize.Template == "" {
		return fmt.Errorf("organize: no template configured under organize.template in %s", rootConfiguration.configPath)
	}
	generator, err := template.New(env.cfg.Organize.Template)
	if err != nil {
		return fmt.Errorf("organize: compile template: %w", err)
	}
	compressionFormat, err := env.cfg.Organize.CompressionFormat()
	if err != nil {
		return fmt.Errorf("organize: %w", err)
	}

	octx := &organize.Context{Template: generator, Compression: compressionFormat}
	if env.cfg.Organize.Trash != "" {
		trash, err := env.resolveBackend(env.cfg.Organize.Trash)
		if err != nil {
			return fmt.Errorf("organize: trash backend: %w", err)
		}
		octx.Trash = trash
	}

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		renamed        int
		alreadyCorrect int
		cleanedUp      int
		failed         int
	)

	for event := range organize.Stream(ctx, backend, env.repo, octx) {
		switch event.Kind {
		case organize.Started:
			env.logger.Infof("organizing %s", backend.Name())
		case organize.DiscoveryComplete:
			env.logger.Infof("%d cached files to organize", event.Total)
		case organize.Organized:
			if event.Err != nil {
				failed++
				env.logger.Errorf("%s: %v", event.Path, event.Err)
				continue
			}
			switch event.Action.Kind {
			case organize.Renamed:
				renamed++
				env.logger.Infof("%s -> %s", event.Path, event.Action.Path)
			case organize.AlreadyCorrect:
				alreadyCorrect++
			case organize.CleanedUp:
				cleanedUp++
				env.logger.Infof("cleaned up %s", event.Action.Path)
			}
		}
	}

	fmt.Printf("organized: %d renamed, %d already correct, %d cleaned up, %d failed\n",
		renamed, alreadyCorrect, cleanedUp, failed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to organize", failed)
	}
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/config"
	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/fsx"
	"github.com/sysid/rs-env/internal/project"
	"github.com/sysid/rs-env/internal/ui"
	"github.com/sysid/rs-env/internal/vault"
)

var (
	verbose     bool
	projectDir  string
	liveFS      = fsx.NewOS()
	stdout      = ui.NewStdout()
	stderr      = ui.NewStderr()
)

func run() int {
	root := rootCmd()
	if err := root.Execute(); err != nil {
		stderr.Errorf("%v", err)
		return errs.ExitCodeOf(err)
	}
	return errs.ExitOK
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rsenv",
		Short:         "Per-project developer workspace and vault manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&projectDir, "directory", "C", "", "set project root (defaults to the working directory)")

	cmd.AddCommand(initCmd())
	cmd.AddCommand(envCmd())
	cmd.AddCommand(guardCmd())
	cmd.AddCommand(swapCmd())
	cmd.AddCommand(sopsCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(infoCmd())
	return cmd
}

// currentProject resolves the -C-selected (or working) directory into a
// project.Project.
func currentProject() (project.Project, error) {
	return project.Locate(projectDir)
}

// currentBinding resolves the current project's verified vault binding.
func currentBinding() (project.Project, vault.Binding, error) {
	proj, err := currentProject()
	if err != nil {
		return project.Project{}, vault.Binding{}, errs.Infrastructure(errs.ExitNoInput, "locating project", err)
	}
	binding, err := vault.New(liveFS).Verify(proj)
	if err != nil {
		return proj, vault.Binding{}, err
	}
	return proj, binding, nil
}

// loadConfig loads the layered config for the optionally-bound vaultRoot
// (pass "" when no vault is bound yet).
func loadConfig(vaultRoot string) (config.Config, error) {
	cfg, err := config.Load(vaultRoot)
	if err != nil {
		return cfg, errs.Application(errs.ExitConfigErr, "loading configuration", err)
	}
	return cfg, nil
}

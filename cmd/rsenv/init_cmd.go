package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/guard"
	"github.com/sysid/rs-env/internal/swap"
	"github.com/sysid/rs-env/internal/vault"
)

func initCmd() *cobra.Command {
	var absolute bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a vault for the current project and bind it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(absolute)
		},
	}
	cmd.Flags().BoolVar(&absolute, "absolute", false, "use absolute symlink targets instead of relative")

	cmd.AddCommand(initResetCmd())
	cmd.AddCommand(initReconnectCmd())
	return cmd
}

func runInit(absolute bool) error {
	proj, err := currentProject()
	if err != nil {
		return err
	}
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	style := vault.StyleRelative
	if absolute {
		style = vault.StyleAbsolute
	}

	binding, err := vault.New(liveFS).Init(proj, cfg.VaultBaseDir, style, time.Now())
	if err != nil {
		return err
	}
	stdout.Printf("vault created at %s\n", binding.Vault.Root)
	return nil
}

func initResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Dissolve the binding, restoring guarded files and the original .envrc",
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := currentProject()
			if err != nil {
				return err
			}
			return vault.New(liveFS).Reset(proj, guard.New(liveFS), swap.New(liveFS))
		},
	}
}

func initReconnectCmd() *cobra.Command {
	var absolute bool
	cmd := &cobra.Command{
		Use:   "reconnect <vault-dot.envrc-path>",
		Short: "Recreate the project .envrc symlink to an existing vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := currentProject()
			if err != nil {
				return err
			}
			style := vault.StyleRelative
			if absolute {
				style = vault.StyleAbsolute
			}
			return vault.New(liveFS).Reconnect(proj, args[0], style)
		},
	}
	cmd.Flags().BoolVar(&absolute, "absolute", false, "use an absolute symlink target instead of relative")
	return cmd
}

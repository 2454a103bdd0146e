package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/config"
	"github.com/sysid/rs-env/internal/errs"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold rsenv's configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configPathCmd())
	return cmd
}

func vaultRootIfBound() string {
	_, binding, err := currentBinding()
	if err != nil {
		return ""
	}
	return binding.Vault.Root
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the fully-resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(vaultRootIfBound())
			if err != nil {
				return err
			}
			enc := toml.NewEncoder(stdout.RawOut())
			return enc.Encode(cfg)
		},
	}
}

func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the compiled defaults to the user config path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.UserConfigPath()
			if path == "" {
				return errs.Infrastructure(errs.ExitIOErr, "cannot determine user config path", nil)
			}
			if _, err := os.Stat(path); err == nil {
				return errs.Application(errs.ExitDataErr, path+" already exists", nil)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return errs.Infrastructure(errs.ExitIOErr, "creating config directory", err)
			}
			f, err := os.Create(path)
			if err != nil {
				return errs.Infrastructure(errs.ExitIOErr, "creating config file", err)
			}
			defer f.Close()
			if err := toml.NewEncoder(f).Encode(config.Defaults()); err != nil {
				return errs.Infrastructure(errs.ExitIOErr, "writing config file", err)
			}
			stdout.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout.Println(config.UserConfigPath())
			return nil
		},
	}
}

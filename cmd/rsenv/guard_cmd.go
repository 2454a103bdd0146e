package main

import (
	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/guard"
	"github.com/sysid/rs-env/internal/vault"
)

func guardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Relocate project files into the vault, leaving symlinks behind",
	}
	cmd.AddCommand(guardAddCmd())
	cmd.AddCommand(guardListCmd())
	cmd.AddCommand(guardRestoreCmd())
	return cmd
}

func guardAddCmd() *cobra.Command {
	var absolute bool
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Move a project file into the vault's guarded/ tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, binding, err := currentBinding()
			if err != nil {
				return err
			}
			style := vault.StyleRelative
			if absolute {
				style = vault.StyleAbsolute
			}
			return guard.New(liveFS).Add(proj.Root, binding.Vault.Root, args[0], style)
		},
	}
	cmd.Flags().BoolVar(&absolute, "absolute", false, "use an absolute symlink target instead of relative")
	return cmd
}

func guardListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every guarded file and its vault location",
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, binding, err := currentBinding()
			if err != nil {
				return err
			}
			records, err := guard.New(liveFS).List(proj.Root, binding.Vault.Root)
			if err != nil {
				return err
			}
			for _, r := range records {
				stdout.Printf("%s -> guarded/%s\n", r.ProjectRel, r.VaultRel)
			}
			return nil
		},
	}
}

func guardRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>",
		Short: "Move a guarded file back out of the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, binding, err := currentBinding()
			if err != nil {
				return err
			}
			return guard.New(liveFS).Restore(proj.Root, binding.Vault.Root, args[0])
		},
	}
}

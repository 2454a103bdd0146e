package main

import (
	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/swap"
)

func swapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Overlay an alternate vault-held version onto a project file",
	}
	cmd.AddCommand(swapInitCmd())
	cmd.AddCommand(swapInCmd())
	cmd.AddCommand(swapOutCmd())
	cmd.AddCommand(swapDeleteCmd())
	cmd.AddCommand(swapStatusCmd())
	cmd.AddCommand(swapAllOutCmd())
	return cmd
}

func swapInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Seed swap/<path> from the current project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, binding, err := currentBinding()
			if err != nil {
				return err
			}
			return swap.New(liveFS).Init(proj.Root, binding.Vault.Root, args[0])
		},
	}
}

func swapInCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "in <path>",
		Short: "Swap the alternate version into the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, binding, err := currentBinding()
			if err != nil {
				return err
			}
			return swap.New(liveFS).In(proj.Root, binding.Vault.Root, args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "override a swap-in held by another host")
	return cmd
}

func swapOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "out <path>",
		Short: "Save edits back and restore the original project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, binding, err := currentBinding()
			if err != nil {
				return err
			}
			return swap.New(liveFS).Out(proj.Root, binding.Vault.Root, args[0])
		},
	}
}

func swapDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path> [path...]",
		Short: "Remove one or more swap records entirely (all-or-nothing)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, binding, err := currentBinding()
			if err != nil {
				return err
			}
			return swap.New(liveFS).Delete(binding.Vault.Root, args)
		},
	}
}

func swapStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List every swap record and its in/out state",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, binding, err := currentBinding()
			if err != nil {
				return err
			}
			records, err := swap.New(liveFS).Status(binding.Vault.Root)
			if err != nil {
				return err
			}
			for _, r := range records {
				if r.In {
					stdout.Printf("%s  IN   (%s)\n", r.Rel, r.Host)
				} else {
					stdout.Printf("%s  OUT\n", r.Rel)
				}
			}
			return nil
		},
	}
}

func swapAllOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all-out <base>",
		Short: "Swap out every file this host holds IN, across every bound project under base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := swap.New(liveFS).AllOut(args[0])
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != nil {
					stderr.Warnf("%s: %v", r.ProjectRoot, r.Err)
					continue
				}
				for _, rel := range r.SwappedOut {
					stdout.Printf("%s: %s\n", r.ProjectRoot, rel)
				}
			}
			return nil
		},
	}
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/guard"
	"github.com/sysid/rs-env/internal/swap"
	"github.com/sysid/rs-env/internal/vault"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the current project's vault binding status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
}

func runInfo() error {
	proj, err := currentProject()
	if err != nil {
		return err
	}
	binder := vault.New(liveFS)

	guardCount, swapCount := 0, 0
	if binding, err := binder.Verify(proj); err == nil {
		if records, err := guard.New(liveFS).List(proj.Root, binding.Vault.Root); err == nil {
			guardCount = len(records)
		}
		if records, err := swap.New(liveFS).Status(binding.Vault.Root); err == nil {
			for _, r := range records {
				if r.In {
					swapCount++
				}
			}
		}
	}

	info := binder.InfoFor(proj, guardCount, swapCount)
	stdout.Printf("project:   %s\n", proj.Root)
	if !info.Bound {
		stdout.Printf("bound:     no\n")
		if info.Violation != "" {
			stdout.Printf("violation: %s\n", info.Violation)
		}
		return nil
	}
	stdout.Printf("bound:     yes\n")
	stdout.Printf("vault:     %s\n", info.VaultPath)
	stdout.Printf("sentinel:  %s\n", info.Sentinel)
	stdout.Printf("created:   %s\n", info.Timestamp)
	stdout.Printf("guarded:   %d\n", info.GuardedCount)
	stdout.Printf("swapped:   %d\n", info.SwapCount)
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/sops"
)

func sopsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sops",
		Short: "Encrypt, decrypt, and track secrets with sops",
	}
	cmd.AddCommand(sopsEncryptCmd())
	cmd.AddCommand(sopsDecryptCmd())
	cmd.AddCommand(sopsCleanCmd())
	cmd.AddCommand(sopsStatusCmd())
	return cmd
}

func sopsDirArg(args []string, vaultRoot string) string {
	if len(args) == 1 {
		return args[0]
	}
	return vaultRoot
}

func sopsWrapper() (*sops.Wrapper, string, error) {
	_, binding, err := currentBinding()
	if err != nil {
		return nil, "", err
	}
	cfg, err := loadConfig(binding.Vault.Root)
	if err != nil {
		return nil, "", err
	}
	return sops.New(liveFS, cfg.SOPS, binding.Vault.Root), binding.Vault.Root, nil
}

func reportFileResults(results []sops.FileResult) {
	for _, r := range results {
		if r.Err != nil {
			stderr.Warnf("%s: %v", r.Name, r.Err)
			continue
		}
		stdout.Printf("%s\n", r.Name)
	}
}

func sopsEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [dir]",
		Short: "Encrypt every plaintext candidate without a .enc sibling",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, vaultRoot, err := sopsWrapper()
			if err != nil {
				return err
			}
			results, err := w.Encrypt(cmd.Context(), sopsDirArg(args, vaultRoot))
			reportFileResults(results)
			return err
		},
	}
}

func sopsDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt [dir]",
		Short: "Decrypt every .enc file back to its plaintext sibling",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, vaultRoot, err := sopsWrapper()
			if err != nil {
				return err
			}
			results, err := w.Decrypt(cmd.Context(), sopsDirArg(args, vaultRoot))
			reportFileResults(results)
			return err
		},
	}
}

func sopsCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [dir]",
		Short: "Remove plaintext siblings of existing .enc files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, vaultRoot, err := sopsWrapper()
			if err != nil {
				return err
			}
			results, err := w.Clean(sopsDirArg(args, vaultRoot))
			reportFileResults(results)
			return err
		},
	}
}

func sopsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [dir]",
		Short: "Report each candidate's encryption status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, vaultRoot, err := sopsWrapper()
			if err != nil {
				return err
			}
			entries, err := w.Status(sopsDirArg(args, vaultRoot))
			if err != nil {
				return err
			}
			for _, e := range entries {
				stdout.Printf("%-8s %s\n", e.Bucket, e.Name)
			}
			return nil
		},
	}
}

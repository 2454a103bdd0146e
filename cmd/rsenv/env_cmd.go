package main

import (
	"github.com/spf13/cobra"

	"github.com/sysid/rs-env/internal/editor"
	"github.com/sysid/rs-env/internal/envgraph"
	"github.com/sysid/rs-env/internal/errs"
	"github.com/sysid/rs-env/internal/ui"
)

func envCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and manipulate the hierarchical env-file graph",
	}
	cmd.AddCommand(envBuildCmd())
	cmd.AddCommand(envFilesCmd())
	cmd.AddCommand(envEnvrcCmd())
	cmd.AddCommand(envTreeCmd())
	cmd.AddCommand(envBranchesCmd())
	cmd.AddCommand(envLeavesCmd())
	cmd.AddCommand(envSelectCmd())
	cmd.AddCommand(envLinkCmd())
	cmd.AddCommand(envUnlinkCmd())
	cmd.AddCommand(envEditCmd())
	cmd.AddCommand(envEditLeafCmd())
	cmd.AddCommand(envTreeEditCmd())
	return cmd
}

func envBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <leaf>",
		Short: "Print the merged environment as export lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := envgraph.Load(args[0])
			if err != nil {
				return err
			}
			stdout.Printf("%s", envgraph.RenderExports(g.Build()))
			return nil
		},
	}
}

func envFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files <leaf>",
		Short: "Print the linearisation, one path per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := envgraph.Load(args[0])
			if err != nil {
				return err
			}
			stdout.Printf("%s", envgraph.FormatFiles(g.Linearize()))
			return nil
		},
	}
}

func envEnvrcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "envrc <leaf> [envrc-path]",
		Short: "Rewrite the vars block in a .envrc's managed section",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			envrcPath := args[0]
			if len(args) == 2 {
				envrcPath = args[1]
			} else {
				_, binding, err := currentBinding()
				if err != nil {
					return err
				}
				envrcPath = binding.Vault.EnvrcPath()
			}
			return envgraph.WriteEnvrc(args[0], envrcPath)
		},
	}
}

func envDir(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return "."
}

func envTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [dir]",
		Short: "Print an ASCII tree of reachable env files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := envgraph.BuildDirIndex(envDir(args))
			if err != nil {
				return err
			}
			reportDirErrors(idx)
			stdout.Printf("%s", idx.Tree())
			return nil
		},
	}
}

func envBranchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branches [dir]",
		Short: "Enumerate every root-to-leaf path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := envgraph.BuildDirIndex(envDir(args))
			if err != nil {
				return err
			}
			reportDirErrors(idx)
			for _, branch := range idx.Branches() {
				stdout.Printf("%s\n", envgraph.FormatFiles(branch))
			}
			return nil
		},
	}
}

func envLeavesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaves [dir]",
		Short: "List files named as parent by no other file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := envgraph.BuildDirIndex(envDir(args))
			if err != nil {
				return err
			}
			reportDirErrors(idx)
			stdout.Printf("%s", envgraph.FormatFiles(idx.Leaves()))
			return nil
		},
	}
}

func reportDirErrors(idx *envgraph.DirIndex) {
	for _, e := range idx.Errors {
		stderr.Warnf("%v", e)
	}
}

func envSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select [dir]",
		Short: "Interactively pick a leaf and rewrite the bound project's .envrc",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, binding, err := currentBinding()
			if err != nil {
				return err
			}
			idx, err := envgraph.BuildDirIndex(envDir(args))
			if err != nil {
				return err
			}
			reportDirErrors(idx)

			leaves := idx.Leaves()
			if len(leaves) == 0 {
				return errs.Application(errs.ExitDataErr, "no candidate leaf files found", nil)
			}
			choice, err := (ui.Survey{}).Select("choose a leaf", leaves)
			if err != nil {
				return errs.Infrastructure(errs.ExitIOErr, "prompting for leaf selection", err)
			}
			return envgraph.WriteEnvrc(choice, binding.Vault.EnvrcPath())
		},
	}
}

func envLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <f0> <f1> [... fn]",
		Short: "Chain files with # rsenv: parent directives",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return envgraph.Link(args)
		},
	}
}

func envUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <file>",
		Short: "Remove any # rsenv: directive from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return envgraph.Unlink(args[0])
		},
	}
}

func editorFromConfig() (string, error) {
	cfg, err := loadConfig(vaultRootIfBound())
	if err != nil {
		return "", err
	}
	return cfg.Editor, nil
}

func envEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <file>",
		Short: "Open a file in the configured editor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := editorFromConfig()
			if err != nil {
				return err
			}
			return editor.New().Edit(cmd.Context(), command, args[0])
		},
	}
}

func envEditLeafCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit-leaf",
		Short: "Open the bound project's active leaf (envs/local.env) in the configured editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, binding, err := currentBinding()
			if err != nil {
				return err
			}
			command, err := editorFromConfig()
			if err != nil {
				return err
			}
			leaf := binding.Vault.PathIn("envs", "local.env")
			return editor.New().Edit(cmd.Context(), command, leaf)
		},
	}
}

func envTreeEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree-edit [dir]",
		Short: "Interactively pick a node from the env tree and edit it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := envgraph.BuildDirIndex(envDir(args))
			if err != nil {
				return err
			}
			reportDirErrors(idx)

			var all []string
			for p := range idx.Nodes {
				all = append(all, p)
			}
			if len(all) == 0 {
				return errs.Application(errs.ExitDataErr, "no env files found", nil)
			}
			choice, err := (ui.Survey{}).Select("choose a file to edit", all)
			if err != nil {
				return errs.Infrastructure(errs.ExitIOErr, "prompting for file selection", err)
			}
			command, err := editorFromConfig()
			if err != nil {
				return err
			}
			return editor.New().Edit(cmd.Context(), command, choice)
		},
	}
}

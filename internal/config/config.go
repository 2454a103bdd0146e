// Package config loads rsenv's layered TOML configuration (§6): compiled
// defaults, then the user config at ~/.config/rsenv/rsenv.toml (or
// $XDG_CONFIG_HOME/rsenv/rsenv.toml), then the project-local
// <vault>/.rsenv.toml, then environment variables — each layer
// overriding the one before it.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// SOPS holds the [sops] table.
type SOPS struct {
	GPGKey             string   `toml:"gpg_key"`
	AgeKey             string   `toml:"age_key"`
	FileExtensionsEnc  []string `toml:"file_extensions_enc"`
	FileNamesEnc       []string `toml:"file_names_enc"`
	FileExtensionsDec  []string `toml:"file_extensions_dec"`
	FileNamesDec       []string `toml:"file_names_dec"`
}

// Config is rsenv's fully-resolved configuration.
type Config struct {
	VaultBaseDir string `toml:"vault_base_dir"`
	Editor       string `toml:"editor"`
	SOPS         SOPS   `toml:"sops"`
}

// Defaults returns the compiled-in baseline, the lowest-precedence layer.
func Defaults() Config {
	return Config{
		VaultBaseDir: "~/.rsenv/vaults",
		Editor:       "",
		SOPS: SOPS{
			FileExtensionsEnc: []string{"env", "envrc"},
			FileNamesEnc:      nil,
			FileExtensionsDec: []string{"enc"},
			FileNamesDec:      nil,
		},
	}
}

// UserConfigPath returns ~/.config/rsenv/rsenv.toml, honoring
// XDG_CONFIG_HOME when set.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rsenv", "rsenv.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "rsenv", "rsenv.toml")
}

// ProjectConfigPath returns <vault>/.rsenv.toml for the given vault root.
func ProjectConfigPath(vaultRoot string) string {
	return filepath.Join(vaultRoot, ".rsenv.toml")
}

// Load resolves the full layered config for a vault at vaultRoot (pass ""
// if no vault is bound yet — only the user layer and env vars apply).
func Load(vaultRoot string) (Config, error) {
	cfg := Defaults()

	if p := UserConfigPath(); p != "" {
		if err := mergeFile(&cfg, p); err != nil {
			return cfg, err
		}
	}

	if vaultRoot != "" {
		if err := mergeFile(&cfg, ProjectConfigPath(vaultRoot)); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	cfg.VaultBaseDir = ExpandPath(cfg.VaultBaseDir)
	return cfg, nil
}

// mergeFile decodes path (if it exists) on top of cfg. TOML fields absent
// from the file leave cfg's current value untouched, because toml.Decode
// only writes fields present in the document (zero-value fields are
// simply not touched when decoding into an already-populated struct for
// scalar fields; slice/table fields are instead decoded wholesale when
// present). Missing files are not an error: an absent layer is simply
// skipped.
func mergeFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	var overlay Config
	overlay.SOPS = cfg.SOPS
	overlay.VaultBaseDir = cfg.VaultBaseDir
	overlay.Editor = cfg.Editor
	if _, err := toml.DecodeFile(path, &overlay); err != nil {
		return err
	}
	*cfg = overlay
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RSENV_VAULT_BASE_DIR"); v != "" {
		cfg.VaultBaseDir = v
	}
	if v := os.Getenv("RSENV_EDITOR"); v != "" {
		cfg.Editor = v
	} else if v := os.Getenv("EDITOR"); v != "" && cfg.Editor == "" {
		cfg.Editor = v
	}
	if v := os.Getenv("RSENV_SOPS_GPG_KEY"); v != "" {
		cfg.SOPS.GPGKey = v
	}
	if v := os.Getenv("RSENV_SOPS_AGE_KEY"); v != "" {
		cfg.SOPS.AgeKey = v
	}
	if v := os.Getenv("RSENV_SOPS_FILE_EXTENSIONS_ENC"); v != "" {
		cfg.SOPS.FileExtensionsEnc = splitCommaList(v)
	}
	if v := os.Getenv("RSENV_SOPS_FILE_NAMES_ENC"); v != "" {
		cfg.SOPS.FileNamesEnc = splitCommaList(v)
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExpandPath expands a leading ~ (to $HOME) and $VAR / ${VAR} references
// in p. It does not support ~user (other-user home) expansion.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return os.Expand(p, func(name string) string {
		return os.Getenv(name)
	})
}

package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// Subdirectory and file names fixed by §3.
const (
	EnvsDir    = "envs"
	GuardedDir = "guarded"
	SwapDir    = "swap"
	DotEnvrc   = "dot.envrc"
	LocalTOML  = ".rsenv.toml"
)

// LinkStyle controls whether a symlink created by rsenv uses a relative or
// absolute target (§4.1, §4.3, §4.4).
type LinkStyle int

const (
	StyleRelative LinkStyle = iota
	StyleAbsolute
)

// Vault is a project's companion directory (§3).
type Vault struct {
	Root string
}

// PathIn joins rel onto the vault root.
func (v Vault) PathIn(rel ...string) string {
	parts := append([]string{v.Root}, rel...)
	return filepath.Join(parts...)
}

func (v Vault) EnvrcPath() string   { return v.PathIn(DotEnvrc) }
func (v Vault) EnvsPath() string    { return v.PathIn(EnvsDir) }
func (v Vault) GuardedPath() string { return v.PathIn(GuardedDir) }
func (v Vault) SwapPath() string    { return v.PathIn(SwapDir) }

// SentinelFromDirName returns the trailing 8-hex-character token of a
// vault directory name ("<project-basename>-<sentinel>"), or "" if the
// name does not end in a well-formed sentinel suffix.
func SentinelFromDirName(dirName string) string {
	if len(dirName) < 9 {
		return ""
	}
	suffix := dirName[len(dirName)-8:]
	if dirName[len(dirName)-9] != '-' {
		return ""
	}
	for _, c := range suffix {
		if !isHex(c) {
			return ""
		}
	}
	return suffix
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// NewSentinel generates a fresh 8-hex-character sentinel-id (§3), drawn
// from crypto/rand. No identifier-generation library in the retrieval
// pack addresses this concern, so this stays on crypto/rand + encoding/hex
// (see DESIGN.md).
func NewSentinel() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating vault sentinel: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// DirName composes the vault directory name for a project basename and
// sentinel (§3).
func DirName(projectBasename, sentinel string) string {
	return fmt.Sprintf("%s-%s", projectBasename, sentinel)
}

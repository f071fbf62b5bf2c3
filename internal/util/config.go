// Package util holds the shell's configuration loading and small helpers
// shared by the command-line front end.
package util

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Configuration is the merged runtime configuration of the shell: defaults,
// then the TOML options file, then command-line flags, in that order.
type Configuration struct {
	Version   string `toml:"-"`
	BuildDate string `toml:"-"`
	Commit    string `toml:"-"`

	// ScriptDirs is the ordered search path for scripts.
	ScriptDirs []string `toml:"script_dirs"`
	// Extensions names the extensions loaded at startup. Scripts may load
	// more with loadExtension_ from the compiled-in set.
	Extensions []string `toml:"extensions"`

	PidFile  string `toml:"pid_file"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	GlobalFuncs bool `toml:"global_funcs"`
	RaiseErrors bool `toml:"raise_errors"`
	NoPrint     bool `toml:"no_print"`

	// ExtensionOptions is passed verbatim to every extension as it loads
	// (file_root, sql_root, allow_net_db, ...).
	ExtensionOptions map[string]string `toml:"extension_options"`
}

// DefaultConfiguration returns the baseline the options file overlays.
func DefaultConfiguration() Configuration {
	return Configuration{
		ScriptDirs:       []string{"."},
		LogLevel:         "error",
		ExtensionOptions: map[string]string{},
	}
}

// LoadOptions overlays a TOML options file onto cfg. A missing file is an
// error; pass an empty path to skip the overlay.
func LoadOptions(path string, cfg *Configuration) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("options file: %w", err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("options file %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return fmt.Errorf("options file %s: unknown key %q", path, undec[0].String())
	}
	if cfg.ExtensionOptions == nil {
		cfg.ExtensionOptions = map[string]string{}
	}
	return nil
}

// Package options holds the settings shared by the cilc commands: the optional YAML
// configuration file, the flags that override it, and the logger they imply.
package options

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/lower"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/env/static"
	"github.com/pgavlin/cil2tac/load"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"
)

// Config is the contents of a configuration file.
//
//	requireVerified: false
//	strictIntrinsics: true
//	workers: 4
//	layoutCacheSize: 4096
//	roots:
//	- N.Program::Main
type Config struct {
	lower.Options `yaml:",inline"`

	Roots []string `yaml:"roots"`
}

// ReadConfig decodes a configuration. Unknown keys are errors.
func ReadConfig(r io.Reader) (*Config, error) {
	config := Config{Options: *lower.DefaultOptions()}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	return &config, nil
}

// Flags holds the settings common to every command.
type Flags struct {
	ConfigPath       string
	Verbose          bool
	Roots            []string
	RequireVerified  bool
	StrictIntrinsics bool
	Workers          int
}

// AddTo registers the flags with a command.
func (f *Flags) AddTo(command *cobra.Command) {
	flags := command.PersistentFlags()
	flags.StringVar(&f.ConfigPath, "config", "", "read lowering options from this YAML file")
	flags.BoolVarP(&f.Verbose, "verbose", "v", false, "log each lowering step")
	flags.StringSliceVarP(&f.Roots, "root", "r", nil, "lower this method and everything it reaches (may be repeated). Defaults to every method")
	flags.BoolVar(&f.RequireVerified, "require-verified", true, "treat verification failures as errors")
	flags.BoolVar(&f.StrictIntrinsics, "strict-intrinsics", false, "treat calls to runtime methods without an intrinsic as errors")
	flags.IntVarP(&f.Workers, "workers", "j", 0, "the number of methods to lower concurrently. Defaults to GOMAXPROCS")
}

// Config reads the configuration file, if any, and applies the flags that were set on the
// command line over it.
func (f *Flags) Config(command *cobra.Command) (*Config, error) {
	config := &Config{Options: *lower.DefaultOptions()}
	if f.ConfigPath != "" {
		data, err := os.ReadFile(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		if config, err = ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, errors.Wrapf(err, "%v", f.ConfigPath)
		}
	}

	flags := command.Flags()
	if flags.Changed("require-verified") {
		config.RequireVerified = f.RequireVerified
	}
	if flags.Changed("strict-intrinsics") {
		config.StrictIntrinsics = f.StrictIntrinsics
	}
	if flags.Changed("workers") {
		config.Workers = f.Workers
	}
	if flags.Changed("root") {
		config.Roots = f.Roots
	}

	level := slog.LevelInfo
	if f.Verbose {
		level = slog.LevelDebug
	}
	config.Logger = slog.New(slog.NewTextHandler(command.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return config, nil
}

// Lower loads the module at path and lowers the configured roots.
func (c *Config) Lower(path string) (*lower.ModuleResult, error) {
	mod, err := load.LoadFile(path)
	if err != nil {
		return nil, err
	}
	roots, err := Resolve(mod, c.Roots)
	if err != nil {
		return nil, err
	}
	return lower.Module(mod, roots, &c.Options)
}

// Resolve looks up each named method.
func Resolve(mod *static.Module, names []string) ([]*cil.Method, error) {
	roots := make([]*cil.Method, 0, len(names))
	for _, name := range names {
		m, err := mod.LookupMethod(name)
		if err != nil {
			return nil, errors.Wrap(err, "resolving root")
		}
		roots = append(roots, m)
	}
	return roots, nil
}

var warning = color.New(color.FgYellow)

// PrintWarnings writes the warnings of every lowered method, highlighted when w is a terminal.
func PrintWarnings(w io.Writer, result *lower.ModuleResult) {
	for _, r := range result.Methods {
		for _, warn := range r.Warnings {
			printWarning(w, warn)
		}
	}
}

func printWarning(w io.Writer, warn method.Warning) {
	warning.Fprint(w, "warning: ")
	io.WriteString(w, warn.String()+"\n")
}

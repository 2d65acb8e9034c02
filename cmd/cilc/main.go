package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/pgavlin/cil2tac/cmd/cilc/dump"
	"github.com/pgavlin/cil2tac/cmd/cilc/lower"
	"github.com/pgavlin/cil2tac/compiler/method"
)

var version = "<unknown>"

// profiles holds the paths of the hidden Go profiling outputs.
type profiles struct {
	cpu string
	mem string
}

func (p *profiles) start(cmd *cobra.Command, args []string) error {
	if p.cpu == "" {
		return nil
	}
	f, err := os.Create(p.cpu)
	if err != nil {
		return err
	}
	return pprof.StartCPUProfile(f)
}

func (p *profiles) stop(cmd *cobra.Command, args []string) error {
	if p.cpu != "" {
		pprof.StopCPUProfile()
	}
	if p.mem == "" {
		return nil
	}

	f, err := os.Create(p.mem)
	if err != nil {
		return err
	}
	defer f.Close()

	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

func configureCLI() *cobra.Command {
	var p profiles

	rootCommand := &cobra.Command{
		Use:                "cilc",
		Short:              "cilc CIL lowering tools",
		Long:               "cilc - lowers CIL method bodies to three-address code",
		Version:            version,
		SilenceErrors:      true,
		SilenceUsage:       true,
		PersistentPreRunE:  p.start,
		PersistentPostRunE: p.stop,
	}

	rootCommand.AddCommand(lower.Command())
	rootCommand.AddCommand(dump.Command())

	flags := rootCommand.PersistentFlags()
	flags.StringVar(&p.cpu, "cpu", "", "emit Go CPU profile data to this path")
	flags.StringVar(&p.mem, "mem", "", "emit Go memory profile data to this path")
	flags.MarkHidden("cpu")
	flags.MarkHidden("mem")

	return rootCommand
}

// failureKinds lists the lowering failure kinds with their descriptions and exit statuses.
var failureKinds = []struct {
	kind error
	what string
	code int
}{
	{method.ErrVerification, "unverifiable code", 2},
	{method.ErrUnsupported, "unsupported code", 3},
	{method.ErrResolution, "unresolved reference", 4},
}

// describe renders a command failure. Lowering failures lead with the method and IL offset they
// occurred at.
func describe(err error) string {
	var lerr *method.Error
	if !errors.As(err, &lerr) {
		return err.Error()
	}

	what := "lowering failed"
	for _, k := range failureKinds {
		if errors.Is(err, k.kind) {
			what = k.what
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%v in %v", what, lerr.Method)
	if lerr.Offset >= 0 {
		fmt.Fprintf(&b, " at IL_%04x (%v)", lerr.Offset, lerr.Opcode)
	}
	fmt.Fprintf(&b, "\n  %v", err)
	return b.String()
}

func exitCode(err error) int {
	if errors.As(err, new(*method.Error)) {
		for _, k := range failureKinds {
			if errors.Is(err, k.kind) {
				return k.code
			}
		}
	}
	return 1
}

func main() {
	rootCommand := configureCLI()

	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(exitCode(err))
	}
}

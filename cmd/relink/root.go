package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-relink/callconv"
	"github.com/wippyai/wasm-relink/internal/config"
	"github.com/wippyai/wasm-relink/internal/logging"
	"github.com/wippyai/wasm-relink/metadata"
	"github.com/wippyai/wasm-relink/relink"
)

// app carries the state shared by every command of one invocation.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	out     *styles
	cfg     *config.Config
	log     *zap.Logger
	cfgFile string
	verbose bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		out:    newStyles(stdout),
		log:    zap.NewNop(),
	}
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "relink <module> <sentinel>=<target> [<sentinel>=<target>...]",
		Short: "Retarget the external linkage of a compiled module",
		Long: `Retarget the external linkage of a compiled module.

Every imported function whose module name equals a sentinel is rebound to
the mapping's target. Mappings are applied together: "a=b b=c" moves a to b
and b to c, never a to c. Module references left without imports are
dropped from the written file.

Examples:
  relink app.wasm __Internal=libnative
  relink app.wasm __Internal=libnative env=host --dry-run
  relink inspect app.wasm`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runRemap(args[0], args[1:], dryRun)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./relink.toml, then $XDG_CONFIG_HOME/relink/relink.toml)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the retargeted methods without writing the module")

	cmd.AddCommand(newInspectCmd(a))
	cmd.AddCommand(newCallConvCmd(a))
	return cmd
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	code := 1
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
		if exitErr.Err == nil {
			return code
		}
	}
	fmt.Fprintln(stderr, newStyles(stderr).Error.Render("Error:")+" "+err.Error())
	return code
}

// setup loads the configuration and installs the loggers.
func (a *app) setup() error {
	cfg, path, err := config.Load(config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	log, err := logging.New(a.stderr, level, cfg.Log.Development)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	metadata.SetLogger(log.Named("metadata"))
	relink.SetLogger(log.Named("relink"))
	callconv.SetLogger(log.Named("callconv"))

	if path != "" {
		log.Debug("loaded config", zap.String("path", path))
	}
	return nil
}

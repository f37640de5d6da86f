package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/commands"
	"github.com/pweiskircher/build-changes/internal/config"
	"github.com/pweiskircher/build-changes/internal/contracts"
	"github.com/pweiskircher/build-changes/internal/output"
	"github.com/pweiskircher/build-changes/internal/resolver"
)

// AppContext carries the process-level collaborators. Environment, Source and
// Chain are zero in production and injected by tests.
type AppContext struct {
	Stdout      io.Writer
	Stderr      io.Writer
	Now         func() time.Time
	WorkDir     string
	Environment config.Environment
	Source      ci.Source
	Chain       *resolver.Chain
	NewRunID    func() string
}

type GlobalFlags struct {
	JSON    bool
	YAML    bool
	Verbose bool
}

type executionState struct {
	global      GlobalFlags
	commandName string
}

func (state *executionState) outputMode() contracts.OutputMode {
	switch {
	case state.global.JSON:
		return contracts.OutputModeJSON
	case state.global.YAML:
		return contracts.OutputModeYAML
	default:
		return contracts.OutputModeHuman
	}
}

func (state *executionState) resolvedCommandName() string {
	if state.commandName != "" {
		return state.commandName
	}
	return "root"
}

func (state *executionState) logger(app AppContext) *slog.Logger {
	level := slog.LevelInfo
	if state.global.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(app.Stderr, &slog.HandlerOptions{Level: level}))
}

// Run executes the CLI and returns the process exit code. Errors raised before a
// command body runs (flag parsing, unknown commands) are usage errors.
func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	return run(AppContext{Stdout: stdout, Stderr: stderr}, args)
}

func run(app AppContext, args []string) int {
	app = normalizeAppContext(app)

	root, state := newRootCommand(app)
	root.SetArgs(args)
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)

	err := root.Execute()
	if err == nil {
		return int(contracts.ExitCodeSuccess)
	}

	var exitErr *codedExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}

	report := output.Report{CommandName: state.resolvedCommandName()}
	if renderErr := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, 0, err); renderErr != nil {
		_, _ = fmt.Fprintln(app.Stderr, output.FormatDiagnostic(renderErr))
	}

	return int(contracts.ExitCodeConfiguration)
}

// NewRootCommand constructs the Cobra command tree for the CLI.
func NewRootCommand(app AppContext) *cobra.Command {
	root, _ := newRootCommand(app)
	return root
}

func newRootCommand(app AppContext) (*cobra.Command, *executionState) {
	app = normalizeAppContext(app)
	state := &executionState{}

	root := &cobra.Command{
		Use:   "build-changes",
		Short: "Aggregate changes and issues between two CI builds",
		Long: heredoc.Doc(`
			Collect the version-control changes and issue references of every build
			between two builds of one build configuration, enrich the issues from
			Jira and GitHub, and write a change report.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			state.commandName = cmd.Name()
			if state.global.JSON && state.global.YAML {
				return errors.New("--json and --yaml cannot be used together")
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&state.global.JSON, "json", false, "emit a machine-readable JSON envelope")
	root.PersistentFlags().BoolVar(&state.global.YAML, "yaml", false, "emit a machine-readable YAML envelope")
	root.PersistentFlags().BoolVarP(&state.global.Verbose, "verbose", "v", false, "log requests and run details to stderr")

	root.AddCommand(newAggregateDeltaCommand(app, state))
	root.AddCommand(newBuildsCommand(app, state))

	return root, state
}

func normalizeAppContext(app AppContext) AppContext {
	if app.Stdout == nil {
		app.Stdout = io.Discard
	}
	if app.Stderr == nil {
		app.Stderr = io.Discard
	}
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			app.WorkDir = wd
		} else {
			app.WorkDir = "."
		}
	}
	return app
}

// finish renders the command result and converts the outcome to an exit code.
func finish(app AppContext, state *executionState, report output.Report, duration time.Duration, runErr error) error {
	if err := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, duration, runErr); err != nil {
		_, _ = fmt.Fprintln(app.Stderr, output.FormatDiagnostic(err))
		return &codedExitError{Code: contracts.ExitCodeFatal}
	}
	if runErr == nil {
		return nil
	}
	return &codedExitError{Code: contracts.ResolveExitCode(true, commands.IsConfigurationError(runErr))}
}

type codedExitError struct {
	Code contracts.ExitCode
}

func (err *codedExitError) Error() string {
	return fmt.Sprintf("exit with code %d", err.Code)
}

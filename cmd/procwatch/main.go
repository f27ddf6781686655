// Command procwatch is the entry point for the per-process bandwidth
// monitor described in the component design: it parses flags into an
// config.Options value, builds a logrus logger, and hands both to an
// orchestrator.Orchestrator for the life of the process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kzda/procwatch/internal/capture"
	"github.com/kzda/procwatch/internal/config"
	"github.com/kzda/procwatch/internal/orchestrator"
	"github.com/kzda/procwatch/internal/platform"
)

// Exit codes per the external-interfaces contract: 0 normal, 1 generic
// error, 2 usage error, 3 permission error, 4 interface not found.
const (
	exitOK            = 0
	exitGeneric       = 1
	exitUsage         = 2
	exitPermission    = 3
	exitInterfaceGone = 4
)

var (
	flagInterface  string
	flagRaw        bool
	flagNoResolve  bool
	flagShowDNS    bool
	flagDNSServer  string
	flagLogTo      string
	flagVerbose    int
	flagQuiet      int
	flagProcesses  bool
	flagConns      bool
	flagAddresses  bool
	flagUnitFamily string
	flagTotal      bool
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "procwatch",
		Short:         "per-process network bandwidth monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	cmd.Flags().StringVarP(&flagInterface, "interface", "i", "", "capture interface (default: first non-loopback up interface)")
	cmd.Flags().BoolVarP(&flagRaw, "raw", "r", false, "switch to line-oriented output mode")
	cmd.Flags().BoolVarP(&flagNoResolve, "no-resolve", "n", false, "disable reverse DNS")
	cmd.Flags().BoolVarP(&flagShowDNS, "show-dns", "s", false, "surface observed DNS queries")
	cmd.Flags().StringVarP(&flagDNSServer, "dns-server", "d", "", "override resolver upstream")
	cmd.Flags().StringVar(&flagLogTo, "log-to", "", "enable file logging")
	cmd.Flags().CountVarP(&flagVerbose, "verbose", "v", "raise log verbosity (stackable)")
	cmd.Flags().CountVarP(&flagQuiet, "quiet", "q", "lower log verbosity (stackable)")
	cmd.Flags().BoolVarP(&flagProcesses, "processes", "p", false, "restrict UI to the processes table")
	cmd.Flags().BoolVarP(&flagConns, "connections", "c", false, "restrict UI to the connections table")
	cmd.Flags().BoolVarP(&flagAddresses, "addresses", "a", false, "restrict UI to the remote addresses table")
	cmd.Flags().StringVarP(&flagUnitFamily, "unit-family", "u", "bin-bytes", "formatting units: bin-bytes, bin-bits, si-bytes, si-bits")
	cmd.Flags().BoolVarP(&flagTotal, "total-utilization", "t", false, "show cumulative totals instead of rates")

	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	focus, err := resolveFocus(flagProcesses, flagConns, flagAddresses)
	if err != nil {
		return usageError{err}
	}

	opts, err := config.FromFlags(
		flagInterface, flagRaw, flagNoResolve, flagShowDNS,
		flagDNSServer, flagLogTo, flagVerbose-flagQuiet, focus,
		flagUnitFamily, flagTotal,
	)
	if err != nil {
		return usageError{err}
	}

	log := buildLogger(opts)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	o := orchestrator.New(opts, log)
	if err := o.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// resolveFocus translates the mutually-restrictive -p/-c/-a flags into
// a single config.Focus, rejecting more than one at once as a usage
// error (spec §6 doesn't define their combination, so the stricter
// reading is the safer default).
func resolveFocus(processes, conns, addresses bool) (config.Focus, error) {
	count := 0
	focus := config.FocusAll
	if processes {
		count++
		focus = config.FocusProcesses
	}
	if conns {
		count++
		focus = config.FocusConnections
	}
	if addresses {
		count++
		focus = config.FocusAddresses
	}
	if count > 1 {
		return config.FocusAll, fmt.Errorf("-p, -c and -a are mutually exclusive")
	}
	return focus, nil
}

func buildLogger(opts config.Options) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(levelFor(opts.Verbosity))

	if opts.LogTo != "" {
		f, err := os.OpenFile(opts.LogTo, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			log.SetOutput(f)
		} else {
			log.WithError(err).Warn("could not open log file, falling back to stderr")
		}
	}
	return log
}

func levelFor(verbosity int) logrus.Level {
	switch {
	case verbosity <= -2:
		return logrus.ErrorLevel
	case verbosity == -1:
		return logrus.WarnLevel
	case verbosity == 0:
		return logrus.InfoLevel
	case verbosity == 1:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// usageError marks an error that should exit with exitUsage rather than
// exitGeneric.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func exitCodeFor(err error) int {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return exitUsage
	case errors.Is(err, capture.ErrInterfaceMissing):
		return exitInterfaceGone
	case errors.Is(err, capture.ErrInterfacePermission), errors.Is(err, platform.ErrPermission):
		return exitPermission
	default:
		return exitGeneric
	}
}

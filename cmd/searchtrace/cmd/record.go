package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/core/config"
	"github.com/solatis/searchtrace/internal/trace"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a JSONL notification stream into the configured backend",
	RunE:  runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().String("input", "-", "JSONL notification file, - for stdin")
	recordCmd.Flags().Int("events-per-commit", 0, "commit interval (overrides trace.events_per_commit)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cmd.Flags().Changed("events-per-commit") {
		n, _ := cmd.Flags().GetInt("events-per-commit")
		cfg.Trace.EventsPerCommit = n
	}
	input, _ := cmd.Flags().GetString("input")

	session, storer, err := record(cmd.Context(), cfg, logger, input)
	if err != nil {
		return err
	}
	defer session.Close()

	stats := storer.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d events, %d states, %d discarded chains, %d commits\n",
		storer.RunID(), stats.Events, stats.States, stats.DiscardedChains, stats.Commits)
	return nil
}

// record opens a session and replays input through a fresh Storer. On
// success the caller owns the session.
func record(ctx context.Context, cfg *config.Config, logger *zap.Logger, input string) (*trace.Session, *trace.Storer, error) {
	in, closeInput, err := openInput(input)
	if err != nil {
		return nil, nil, err
	}

	session, err := trace.OpenSession(ctx, cfg, logger)
	if err != nil {
		closeInput()
		return nil, nil, err
	}

	storer := session.NewStorer()
	n, err := trace.Replay(ctx, in, session.Registry, storer)
	if err != nil {
		var result *multierror.Error
		result = multierror.Append(result, fmt.Errorf("replay stopped after %d notifications: %w", n, err))
		if cerr := session.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
		closeInput()
		return nil, nil, result.ErrorOrNil()
	}
	closeInput()

	if storer.Recording() {
		logger.Warn("input ended without searchFinished", zap.Int("notifications", n))
	}
	return session, storer, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/rules"
	"github.com/solatis/searchtrace/internal/trace"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Record a notification stream, then query the resulting trace",
}

func init() {
	rootCmd.AddCommand(queryCmd)

	flags := queryCmd.PersistentFlags()
	flags.String("input", "-", "JSONL notification file, - for stdin")
	flags.String("where", "", "JSON filter keeping only matching events")
	flags.Bool("reverse", false, "read paths from the last state back to the root")
	flags.String("order", "dfs", "tree traversal order for events and states (dfs, bfs)")
	flags.String("policy", "skip", "elements printed from a path (skip, all, reverse)")

	queryCmd.AddCommand(
		queryCommand("last-path", "Print the live path from the root to the last state", queryLastPath),
		queryCommand("all-paths", "Print the path to every end state", queryAllPaths),
		queryCommand("events", "Print every recorded event in tree order", queryEvents),
		queryCommand("threads", "Print the thread ids seen on the last path", queryThreads),
		queryCommand("states", "Print every state in tree order", queryStates),
	)
}

// queryOptions carries the parsed query flags.
type queryOptions struct {
	pred    trace.Predicate
	reverse bool
	order   graph.Order
	policy  string
	out     *json.Encoder
}

type queryFunc func(ctx context.Context, q *trace.Query, opts queryOptions) error

func queryCommand(use, short string, run queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, run)
		},
	}
}

func runQuery(cmd *cobra.Command, run queryFunc) error {
	opts, err := parseQueryOptions(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	input, _ := cmd.Flags().GetString("input")
	session, _, err := record(cmd.Context(), cfg, logger, input)
	if err != nil {
		return err
	}
	defer session.Close()

	return run(cmd.Context(), session.NewQuery(), opts)
}

func parseQueryOptions(cmd *cobra.Command, out io.Writer) (queryOptions, error) {
	flags := cmd.Flags()
	opts := queryOptions{pred: trace.All, out: json.NewEncoder(out)}

	if where, _ := flags.GetString("where"); where != "" {
		data := []byte(where)
		if where[0] == '@' {
			var err error
			if data, err = os.ReadFile(where[1:]); err != nil {
				return opts, fmt.Errorf("failed to read filter: %w", err)
			}
		}
		filter, err := rules.ParseFilter(data)
		if err != nil {
			return opts, fmt.Errorf("invalid --where filter: %w", err)
		}
		if opts.pred, err = trace.NewRulePredicate(filter); err != nil {
			return opts, fmt.Errorf("invalid --where filter: %w", err)
		}
	}

	opts.reverse, _ = flags.GetBool("reverse")

	order, _ := flags.GetString("order")
	switch order {
	case "dfs":
		opts.order = graph.DepthFirst
	case "bfs":
		opts.order = graph.BreadthFirst
	default:
		return opts, fmt.Errorf("--order must be dfs or bfs, got %q", order)
	}

	opts.policy, _ = flags.GetString("policy")
	switch opts.policy {
	case "skip", "all", "reverse":
	default:
		return opts, fmt.Errorf("--policy must be skip, all or reverse, got %q", opts.policy)
	}
	if opts.reverse && opts.policy == "reverse" {
		return opts, fmt.Errorf("--policy reverse reorders a forward path and cannot be combined with --reverse")
	}
	return opts, nil
}

// output is one printed line: a notification record, tagged with the path
// it belongs to when more than one path is printed.
type output struct {
	Path *int `json:"path,omitempty"`
	trace.Record
}

// iterate re-wraps the elements of it under the selected policy.
func (o queryOptions) iterate(it *trace.EventIterator) *trace.EventIterator {
	switch o.policy {
	case "all":
		return trace.NewIterator(it.Elements(), trace.IncludeAll)
	case "reverse":
		return trace.NewReverseIterator(it.Elements())
	}
	return trace.NewIterator(it.Elements(), trace.SkipStates)
}

func (o queryOptions) print(it *trace.EventIterator, path *int) error {
	it = o.iterate(it)
	for it.HasNext() {
		if err := o.out.Encode(output{Path: path, Record: trace.EncodeRecord(it.Next())}); err != nil {
			return err
		}
	}
	return nil
}

func queryLastPath(ctx context.Context, q *trace.Query, opts queryOptions) error {
	it, err := q.GetLastPath(ctx, opts.pred, opts.reverse)
	if err != nil {
		return err
	}
	return opts.print(it, nil)
}

func queryAllPaths(ctx context.Context, q *trace.Query, opts queryOptions) error {
	paths, err := q.GetAllPaths(ctx, opts.pred, opts.reverse)
	if err != nil {
		return err
	}
	for i, it := range paths {
		if err := opts.print(it, &i); err != nil {
			return err
		}
	}
	return nil
}

func queryEvents(ctx context.Context, q *trace.Query, opts queryOptions) error {
	it, err := q.GetEvents(ctx, opts.pred, opts.order)
	if err != nil {
		return err
	}
	return opts.print(it, nil)
}

func queryThreads(ctx context.Context, q *trace.Query, opts queryOptions) error {
	it, err := q.GetLastPath(ctx, opts.pred, opts.reverse)
	if err != nil {
		return err
	}
	ids := trace.GetThreadIdList(it)
	if ids == nil {
		ids = []int64{}
	}
	return opts.out.Encode(map[string][]int64{"threads": ids})
}

func queryStates(ctx context.Context, q *trace.Query, opts queryOptions) error {
	states, err := q.GetStates(ctx, opts.order)
	if err != nil {
		return err
	}
	if opts.reverse {
		for i, j := 0, len(states)-1; i < j; i, j = i+1, j-1 {
			states[i], states[j] = states[j], states[i]
		}
	}
	for _, s := range states {
		if err := opts.out.Encode(output{Record: trace.EncodeRecord(s)}); err != nil {
			return err
		}
	}
	return nil
}

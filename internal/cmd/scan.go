package cmd

import (
	"context"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/kbukum/funnel/datascan"
	"github.com/kbukum/funnel/funnel"
	"github.com/kbukum/funnel/jsonl"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/observability"
	"github.com/kbukum/funnel/pipeline"
)

const (
	scanCmdUsage = "scan FILE"
	scanCmdShort = "infer the schema of a JSONL file"
	scanCmdLong  = `Infer the schema of a JSONL file.
	Lines are decoded in parallel by the transform workers and scanned one at
	a time by the reducer. The result is printed as JSON, with the type seen
	at every position, or "multiple" where more than one type was seen. Lists
	are shown with a single element merging all their items.

	Files ending in .gz, .gzip, .zst or .zstd are decompressed while reading.`

	scanCmdExample = `# Print the schema of a gzipped dump
	funnel scan records.jsonl.gz

	# Print a sample record instead, using 8 workers
	funnel scan records.jsonl --prototype -w 8

	# Look at the first thousand records only
	funnel scan records.jsonl --limit 1000`

	prototypeFlagName  = "prototype"
	prototypeFlagUsage = "print the last non-null value seen at every position instead of its type"

	limitFlagName  = "limit"
	limitFlagUsage = "scan at most this many records (0 scans the whole file)"
)

type scanOptions struct {
	prototype bool
	limit     int
}

// ScanCmd returns the command that infers the schema of a JSONL file.
func ScanCmd(root *rootFlags) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:     scanCmdUsage,
		Short:   heredoc.Doc(scanCmdShort),
		Long:    heredoc.Doc(scanCmdLong),
		Example: heredoc.Doc(scanCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.environment(cmd)
			if err != nil {
				return handleError(cmd, err)
			}
			defer env.close()

			result, err := runScan(cmd.Context(), env, args[0], opts)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return handleError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.prototype, prototypeFlagName, false, prototypeFlagUsage)
	cmd.Flags().IntVar(&opts.limit, limitFlagName, 0, limitFlagUsage)
	return cmd
}

func runScan(ctx context.Context, env *environment, path string, opts scanOptions) (any, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanScanFile)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrPath, path)

	in, err := openInput(path, jsonl.WithLogger(env.log.WithComponent("jsonl")))
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	defer in.Close()

	scanner := datascan.New(datascan.WithLogger(env.log.WithComponent("datascan")))
	decode := funnel.Fn(func(_ context.Context, line []byte) (funnel.Task, error) {
		v, err := jsonl.Decode(line)
		if err != nil {
			return funnel.Task{}, err
		}
		// A record that is a JSON array is one value, not a list of arguments.
		return funnel.Single(v), nil
	})

	limit := opts.limit
	if limit <= 0 {
		limit = -1
	}
	lines := pipeline.Take(pipeline.From(in.Lines()), limit)

	if _, err := funnel.Collect(ctx, lines.Iter(ctx), decode, scanner.Reducer(), env.settings.Funnel, env.opts...); err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	env.log.Info("scan finished", logger.Fields(
		logger.FieldPath, path,
		"records", scanner.Scanned(),
		"positions", len(scanner.Paths()),
	), logger.DurationFields("scan", time.Since(start)))
	if opts.prototype {
		return scanner.Prototype(), nil
	}
	return scanner.Schema(), nil
}

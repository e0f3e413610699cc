package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/funnel"
	"github.com/kbukum/funnel/jsonl"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/observability"
	"github.com/kbukum/funnel/pipeline"
)

const (
	projectCmdUsage = "project IN OUT"
	projectCmdShort = "copy selected fields of every record to another JSONL file"
	projectCmdLong  = `Copy selected fields of every record to another JSONL file.
	Each object record is handed to a transform worker as named arguments and
	the worker keeps the requested fields. Records that are not objects, and
	records holding none of the fields, are skipped. Output records may be
	written in a different order than they were read.

	OUT is created if it does not exist and appended to otherwise. Both files
	are compressed according to their extension (.gz, .gzip, .zst, .zstd).`

	projectCmdExample = `# Keep the id and name of every user
	funnel project users.jsonl.gz names.jsonl --fields id,name`

	fieldsFlagName  = "fields"
	fieldsFlagUsage = "comma separated list of top level fields to keep"

	// progressEvery is how many records are read between progress logs.
	progressEvery = 10000
)

// ProjectCmd returns the command that copies selected fields of a JSONL file.
func ProjectCmd(root *rootFlags) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:     projectCmdUsage,
		Short:   heredoc.Doc(projectCmdShort),
		Long:    heredoc.Doc(projectCmdLong),
		Example: heredoc.Doc(projectCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.environment(cmd)
			if err != nil {
				return handleError(cmd, err)
			}
			defer env.close()

			stats, err := runProject(cmd.Context(), env, args[0], args[1], fields)
			if err != nil {
				return handleError(cmd, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "read %d records, skipped %d, wrote %d to %s\n",
				stats.Read, stats.Skipped, stats.Written, args[1])
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&fields, fieldsFlagName, nil, fieldsFlagUsage)
	_ = cmd.MarkFlagRequired(fieldsFlagName)
	return cmd
}

type projectStats struct {
	Read    int
	Skipped int
	Written int
}

func runProject(ctx context.Context, env *environment, inPath, outPath string, fields []string) (stats projectStats, err error) {
	if len(fields) == 0 {
		return stats, errors.Configuration(fieldsFlagName, "at least one field is required")
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanProject)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrPath, inPath)
	defer func() {
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
	}()

	jsonlOpts := []jsonl.Option{jsonl.WithLogger(env.log.WithComponent("jsonl"))}
	in, err := openInput(inPath, jsonlOpts...)
	if err != nil {
		return stats, err
	}
	defer in.Close()

	out, err := jsonl.Open(outPath, jsonlOpts...)
	if err != nil {
		return stats, err
	}
	defer out.Close()

	// Tap runs on the goroutine pulling the funnel's input.
	records := pipeline.Tap(pipeline.From(in.Stream()), func(_ context.Context, _ any) error {
		stats.Read++
		if stats.Read%progressEvery == 0 {
			env.log.Debug("projecting", logger.Fields(logger.FieldPath, inPath, "records", stats.Read))
		}
		return nil
	})
	objects := pipeline.Filter(records, func(v any) bool {
		_, ok := v.(map[string]any)
		return ok
	})

	p, err := funnel.Pipe(objects, selectFields(fields), nil, env.settings.Funnel, env.opts...)
	if err != nil {
		return stats, err
	}
	n, err := out.Extend(ctx, p.Iter(ctx))
	if err != nil {
		return stats, err
	}
	if err := out.Close(); err != nil {
		return stats, err
	}

	stats.Written = n
	stats.Skipped = stats.Read - n
	env.log.Info("projection finished", logger.Fields(
		logger.FieldPath, outPath,
		"read", stats.Read,
		"written", stats.Written,
		"skipped", stats.Skipped,
	), logger.DurationFields("project", time.Since(start)))
	return stats, nil
}

// selectFields returns a transform keeping the named arguments listed in
// fields. A record holding none of them produces no output.
func selectFields(fields []string) funnel.Func {
	return funnel.KwFn(func(_ context.Context, kw funnel.Kwargs) (any, error) {
		out := make(map[string]any, len(fields))
		for _, name := range fields {
			if v, ok := kw[name]; ok {
				out[name] = v
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	})
}

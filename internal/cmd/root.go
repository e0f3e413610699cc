// Package cmd implements the commands of the funnel binary.
package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	appName  = "funnel"
	appShort = "run JSONL files through a parallel transform and reduce pipeline"
	appLong  = `Run JSONL files through a parallel transform and reduce pipeline.
	Every command feeds the records of a file to a pool of transform workers
	and hands their results to a single reducer. Records may be processed in
	any order.

	Settings are read from funnel.yml (or config.yml) in the working directory,
	./config or ./cmd/funnel, from a .env file and from FUNNEL_* environment
	variables. Flags take precedence over all of them.`
)

// RootCmd returns the funnel command tree.
func RootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: heredoc.Doc(appShort),
		Long:  heredoc.Doc(appLong),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(err)
		_ = c.Usage()
		return err
	})

	flags.addFlags(cmd)
	cmd.AddCommand(
		ScanCmd(flags),
		ProjectCmd(flags),
		VersionCmd(),
	)

	return cmd
}

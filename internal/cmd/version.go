package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/kbukum/funnel/version"
)

const (
	versionCmdName  = "version"
	versionCmdShort = "display the " + appName + " version"

	jsonFlagName  = "json"
	jsonFlagUsage = "print the build information as JSON"
)

// VersionCmd returns the command that prints version information.
func VersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   versionCmdName,
		Short: heredoc.Doc(versionCmdShort),

		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				cmd.PrintErrln(err)
				_ = cmd.Usage()
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), version.GetVersionInfo()); err != nil {
					return handleError(cmd, err)
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, jsonFlagName, false, jsonFlagUsage)
	return cmd
}

func versionString() string {
	info := version.GetVersionInfo()
	return fmt.Sprintf("%s %s, %s %s", appName, version.GetFullVersion(), info.GoVersion, info.Platform)
}

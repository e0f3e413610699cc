package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/jsonl"
)

// handleError prints err on the command's stderr and returns it, so RunE can
// end with `return handleError(cmd, err)`.
func handleError(cmd *cobra.Command, err error) error {
	cmd.PrintErrln("Error:", err)
	return err
}

// openInput opens an existing JSONL file for reading.
func openInput(path string, opts ...jsonl.Option) (*jsonl.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.IO("open", path, err)
	}
	if info.IsDir() {
		return nil, errors.InvalidArgument(fmt.Sprintf("%s is a directory", path))
	}
	return jsonl.OpenRead(path, opts...)
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Internal(err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return errors.IO("write", "", err)
	}
	return nil
}

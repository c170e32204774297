// Package testing provides test utilities for CLI commands.
package testing

import (
	"bytes"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ExecuteCommand runs a cobra command with the given arguments and
// returns the combined output.
func ExecuteCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// ExecuteCommandWithErr runs a cobra command and captures stdout and
// stderr separately.
func ExecuteCommandWithErr(root *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	root.SetOut(stdoutBuf)
	root.SetErr(stderrBuf)
	root.SetArgs(args)

	err = root.Execute()
	return stdoutBuf.String(), stderrBuf.String(), err
}

// ResetCommand resets a cobra command for reuse in tests.
func ResetCommand(cmd *cobra.Command) {
	cmd.SetArgs([]string{})
	cmd.SetOut(nil)
	cmd.SetErr(nil)

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
	})
}

// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/beacon/internal/observability"
)

// resetForTest restores package state between command tests.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

// newPristineRootCmd returns a fresh command tree so flag state does not leak
// between tests.
func newPristineRootCmd() *cobra.Command {
	return newRootCmd()
}

// execute runs the command tree with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newPristineRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitest "github.com/paklog/orchestration/cmd/orchestrator/testing"
)

func TestVersionCommand(t *testing.T) {
	t.Run("prints version information", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "version")

		require.NoError(t, err)
		assert.Contains(t, output, "orchestrator v")
		assert.Contains(t, output, "Build Date")
		assert.Contains(t, output, "Git Commit")
	})

	t.Run("JSON output format", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "version", "--output", "json")

		require.NoError(t, err)
		assert.Contains(t, output, `"version"`)
		assert.Contains(t, output, `"buildDate"`)
	})

	t.Run("does not accept arguments", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "version", "extra")

		assert.Error(t, err)
	})
}

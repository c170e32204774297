package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitest "github.com/paklog/orchestration/cmd/orchestrator/testing"
)

func TestServerCommand(t *testing.T) {
	t.Run("has addr flag", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "server", "--help")

		require.NoError(t, err)
		assert.Contains(t, output, "--addr")
	})

	t.Run("has mongo flags", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "server", "--help")

		require.NoError(t, err)
		assert.Contains(t, output, "--mongo-uri")
		assert.Contains(t, output, "--mongo-db")
	})

	t.Run("has redis flag", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "server", "--help")

		require.NoError(t, err)
		assert.Contains(t, output, "--redis-addr")
	})

	t.Run("has rebalance interval flag", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "server", "--help")

		require.NoError(t, err)
		assert.Contains(t, output, "--rebalance-interval")
	})

	t.Run("rejects invalid configuration", func(t *testing.T) {
		t.Setenv("WORKER_CONCURRENCY", "0")

		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "server")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

package adapter

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestLocalCommandExecutor_Run(t *testing.T) {
	requireBinary(t, "sh")

	runner := NewLocalCommandExecutor(0)

	t.Run("captures stdout and stderr", func(t *testing.T) {
		res, err := runner.Run(context.Background(), t.TempDir(), "sh", "-c", "echo out; echo err 1>&2")
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.True(t, res.Succeeded())
		assert.Equal(t, "out\n", res.Stdout)
		assert.Equal(t, "err\n", res.Stderr)
		assert.Equal(t, "out\nerr\n", res.Combined())
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "", "sh", "-c", "echo boom; exit 3")
		require.NoError(t, err)
		assert.Equal(t, 3, res.ExitCode)
		assert.False(t, res.Succeeded())
		assert.Equal(t, "boom\n", res.Stdout)
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		_, err := runner.Run(context.Background(), "", "definitely-not-a-real-binary-xyz")
		assert.Error(t, err)
	})
}

func TestLocalCommandExecutor_Timeout(t *testing.T) {
	requireBinary(t, "sleep")

	runner := NewLocalCommandExecutor(50 * time.Millisecond)

	res, err := runner.Run(context.Background(), "", "sleep", "5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}

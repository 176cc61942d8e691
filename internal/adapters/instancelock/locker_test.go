package instancelock_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/hearth/internal/adapters/instancelock"
	"go.trai.ch/hearth/internal/core/domain"
)

func TestLocker_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.InstanceLockFileName)
	locker := instancelock.NewLocker()

	held, err := locker.Acquire(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	var holder instancelock.Holder
	require.NoError(t, json.Unmarshal(data, &holder))
	assert.Equal(t, os.Getpid(), holder.PID)

	_, err = locker.Acquire(path)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInstanceLocked))
	assert.Contains(t, err.Error(), "pid")
	assert.Equal(t, domain.RemediationLocked, domain.RemediationOf(err))

	require.NoError(t, held.Release())
	require.NoError(t, held.Release(), "release is idempotent")

	again, err := locker.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestLocker_MissingDirectory(t *testing.T) {
	_, err := instancelock.NewLocker().Acquire(filepath.Join(t.TempDir(), "nope", "lock"))
	require.Error(t, err)
	assert.False(t, domain.IsKind(err, domain.KindInstanceLocked))
}

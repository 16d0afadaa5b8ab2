package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSingleton_SecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fabricd.lock")

	first, err := AcquireSingleton(path)
	require.NoError(t, err)
	defer first.Unlock()

	_, err = AcquireSingleton(path)
	assert.Error(t, err)
}

func TestAcquireSingleton_ReacquireAfterUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fabricd.lock")

	first, err := AcquireSingleton(path)
	require.NoError(t, err)
	require.NoError(t, first.Unlock())

	second, err := AcquireSingleton(path)
	require.NoError(t, err)
	defer second.Unlock()
}

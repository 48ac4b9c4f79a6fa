package knownhosts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownUsesInjectedRunner(t *testing.T) {
	orig := runKeygen
	defer func() { runKeygen = orig }()

	runKeygen = func(ctx context.Context, hostname string) ([]byte, error) {
		return []byte("# Host host.example.com found: line 3\n"), nil
	}
	assert.True(t, Known(context.Background(), "host.example.com"))

	runKeygen = func(ctx context.Context, hostname string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	assert.False(t, Known(context.Background(), "host.example.com"))

	runKeygen = func(ctx context.Context, hostname string) ([]byte, error) {
		return []byte(""), nil
	}
	assert.False(t, Known(context.Background(), "host.example.com"))
}

func TestAcquireRejectsEmptyScan(t *testing.T) {
	orig := runKeyscan
	defer func() { runKeyscan = orig }()

	runKeyscan = func(ctx context.Context, hostname string) ([]byte, error) {
		return nil, nil
	}
	_, err := Acquire(context.Background(), "host.example.com")
	assert.Error(t, err)
}

func TestAcquireRequiresHome(t *testing.T) {
	orig := runKeyscan
	defer func() { runKeyscan = orig }()
	runKeyscan = func(ctx context.Context, hostname string) ([]byte, error) {
		return []byte("host.example.com ssh-ed25519 AAAAnotarealkey\n"), nil
	}

	oldHome, had := os.LookupEnv("HOME")
	os.Unsetenv("HOME")
	defer func() {
		if had {
			os.Setenv("HOME", oldHome)
		}
	}()

	_, err := Acquire(context.Background(), "host.example.com")
	assert.Error(t, err)
}

func TestAcquireWritesAppendOnly(t *testing.T) {
	orig := runKeyscan
	defer func() { runKeyscan = orig }()

	home := t.TempDir()
	t.Setenv("HOME", home)

	runKeyscan = func(ctx context.Context, hostname string) ([]byte, error) {
		return []byte("host.example.com ssh-ed25519 AAAAnotarealkey\n"), nil
	}
	_, err := Acquire(context.Background(), "host.example.com")
	require.NoError(t, err)

	knownHostsPath := filepath.Join(home, ".ssh", "known_hosts")
	first, err := os.ReadFile(knownHostsPath)
	require.NoError(t, err)
	assert.Contains(t, string(first), "host.example.com")

	info, err := os.Stat(filepath.Join(home, ".ssh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	runKeyscan = func(ctx context.Context, hostname string) ([]byte, error) {
		return []byte("second.example.com ssh-ed25519 AAAAanothernotarealkey\n"), nil
	}
	_, err = Acquire(context.Background(), "second.example.com")
	require.NoError(t, err)

	second, err := os.ReadFile(knownHostsPath)
	require.NoError(t, err)
	assert.True(t, len(second) > len(first), "acquisition must append, not overwrite")
	assert.Contains(t, string(second), string(first), "prior content must remain a prefix of the new content")
}

func TestFingerprintsSkipsCommentsAndMalformedLines(t *testing.T) {
	blob := []byte("# comment\n\nthis is not a known_hosts line at all\n")
	assert.Empty(t, fingerprints(blob))
}

// Package knownhosts implements the known-hosts manager (C5): check
// and acquire, both delegated to the external ssh-keygen and
// ssh-keyscan binaries, ported from check_ssh_key and add_ssh_key in
// the original secure_shell.cpp.
//
// golang.org/x/crypto/ssh is used the way an SSH client's own
// known_hosts handling would use it: not to drive a connection, but
// to parse and fingerprint the key lines the external scanner hands
// back, after they have been appended to disk verbatim. Lines it
// cannot parse are still written; they are only left out of the
// returned fingerprints.
package knownhosts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// runKeygen execs ssh-keygen -F and captures its stdout. A package
// variable rather than a direct exec.CommandContext call inside
// Known, so tests can substitute a fake runner without shelling out.
var runKeygen = func(ctx context.Context, hostname string) ([]byte, error) {
	return exec.CommandContext(ctx, "ssh-keygen", "-F", hostname).Output()
}

// Known runs `ssh-keygen -F <hostname>` and reports the host as known
// iff the command exits zero and its output contains "Host", exactly
// as check_ssh_key does.
func Known(ctx context.Context, hostname string) bool {
	out, err := runKeygen(ctx, hostname)
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "Host")
}

// runKeyscan execs ssh-keyscan and captures its stdout, as a package
// variable for the same testability reason as runKeygen above.
var runKeyscan = func(ctx context.Context, hostname string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ssh-keyscan", hostname)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Fingerprint describes one key line the scanner returned, with its
// SHA256 fingerprint resolved via golang.org/x/crypto/ssh for the log
// message the session loop emits on acquisition.
type Fingerprint struct {
	Line        string
	Fingerprint string
}

// Acquire runs `ssh-keyscan <hostname>`, appends its output verbatim
// to $HOME/.ssh/known_hosts (creating $HOME/.ssh with 0700 if
// missing), and returns the fingerprints of the keys it wrote for
// logging. Absence of $HOME is an error, as is an empty or
// non-zero-exit scan result.
func Acquire(ctx context.Context, hostname string) ([]Fingerprint, error) {
	output, err := runKeyscan(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("ssh-keyscan failed: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("ssh-keyscan returned no host key for %q", hostname)
	}

	home := os.Getenv("HOME")
	if home == "" {
		return nil, fmt.Errorf("HOME is not set")
	}

	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", sshDir, err)
	}

	knownHostsPath := filepath.Join(sshDir, "known_hosts")
	f, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", knownHostsPath, err)
	}
	defer f.Close()

	if _, err := f.Write(output); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", knownHostsPath, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("failed to flush %s: %w", knownHostsPath, err)
	}

	return fingerprints(output), nil
}

// fingerprints parses each non-comment line of a ssh-keyscan-style
// known_hosts blob and resolves the public key's SHA256 fingerprint,
// skipping any line golang.org/x/crypto/ssh can't parse rather than
// failing the whole acquisition on it — the write to known_hosts
// already succeeded by the time this runs.
func fingerprints(output []byte) []Fingerprint {
	var out []Fingerprint
	for _, line := range strings.Split(string(output), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		_, _, key, _, _, err := ssh.ParseKnownHosts([]byte(trimmed))
		if err != nil {
			continue
		}
		out = append(out, Fingerprint{Line: trimmed, Fingerprint: ssh.FingerprintSHA256(key)})
	}
	return out
}

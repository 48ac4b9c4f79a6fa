package session

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureshell/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxArgs:        10,
		MaxArgLength:   100,
		CommandTimeout: 5,
		LogFile:        "/dev/null",
		LogRotateSize:  1048576,
		LogRetainCount: 3,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runLoop(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	Loop(context.Background(), testConfig(), discardLogger(), strings.NewReader(input), &out, &out)
	return out.String()
}

func TestLoopRejectsDisallowedVerb(t *testing.T) {
	out := runLoop(t, "rm -rf /\nexit\n")
	assert.Contains(t, out, "Error: Command not allowed.")
}

func TestLoopRejectsSSHPortForwarding(t *testing.T) {
	out := runLoop(t, "ssh -L 8080:x:22 user@1.2.3.4\nexit\n")
	assert.Contains(t, out, "Error: Invalid or unsafe arguments.")
}

func TestLoopRejectsTooManyArguments(t *testing.T) {
	out := runLoop(t, "ping 1 2 3 4 5 6 7 8 9 10 11\nexit\n")
	assert.Contains(t, out, "Error: Too many arguments.")
}

func TestLoopEmptyLineContinuesSilently(t *testing.T) {
	out := runLoop(t, "\nexit\n")
	assert.NotContains(t, out, "Error:")
}

func TestLoopExitTerminates(t *testing.T) {
	out := runLoop(t, "exit\nping 8.8.8.8\n")
	// The second line must never be reached: the prompt is printed
	// once for "exit" and the loop stops before reading further.
	assert.Equal(t, 1, strings.Count(out, prompt))
}

func TestLoopEndOfInputTerminatesGracefully(t *testing.T) {
	out := runLoop(t, "")
	assert.Equal(t, prompt, out)
}

func TestLoopRejectsInvalidSSHHostname(t *testing.T) {
	out := runLoop(t, "ssh user@unresolvable.invalid.host.that.does.not.exist\nexit\n")
	assert.Contains(t, out, "Error: Invalid hostname or IP address.")
}

func TestExtractHostname(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"user@1.2.3.4"}, "1.2.3.4"},
		{[]string{"1.2.3.4"}, "1.2.3.4"},
		{[]string{"-p", "2222", "user@host.example.com"}, "host.example.com"},
		{nil, ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, extractHostname(tc.args))
	}
}

package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBounds(t *testing.T) {
	tokens, err := Tokenize("ping 8.8.8.8", 10, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"ping", "8.8.8.8"}, tokens)

	tokens, err = Tokenize("   ", 10, 100)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	_, err = Tokenize("a b c d e f g h i j k", 10, 100)
	assert.Error(t, err)

	long := "ping "
	for i := 0; i < 1000; i++ {
		long += "x"
	}
	_, err = Tokenize(long, 10, 100)
	assert.Error(t, err)
}

func TestAdmitWhitelistClosure(t *testing.T) {
	for _, verb := range []string{"rm", "curl", "wget", "nc", "bash"} {
		_, err := Admit([]string{verb, "-rf", "/"}, 100)
		assert.Error(t, err, "verb %q must not be admitted", verb)
	}
}

func TestAdmitPingGrammar(t *testing.T) {
	inv, err := Admit([]string{"ping", "-c", "4", "8.8.8.8"}, 100)
	require.NoError(t, err)
	assert.Equal(t, Ping, inv.Verb)

	// The ping grammar's trailing alphanumeric alternative also
	// matches plain words, so a defeated command-substitution
	// attempt like "ping $(whoami)" (sanitized to "ping whoami") is
	// admitted as a literal, unresolvable hostname argument rather
	// than rejected at the gate — the substitution itself never ran.
	inv, err = Admit([]string{"ping", "whoami"}, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"whoami"}, inv.Args)

	_, err = Admit([]string{"ping", "user@host"}, 100)
	assert.Error(t, err, "'@' falls outside the ping argument alphabet")

	_, err = Admit([]string{"ping", "a_b"}, 100)
	assert.Error(t, err, "'_' falls outside the ping argument alphabet")
}

func TestAdmitSSHBlocksPortForwarding(t *testing.T) {
	cases := []string{"-L8080:x:22", "-R2222:y:22", "-D1080"}
	for _, arg := range cases {
		_, err := Admit([]string{"ssh", arg, "user@1.2.3.4"}, 100)
		assert.Error(t, err, "forwarding flag %q must be rejected", arg)
	}
}

func TestAdmitSSHAllowsOrdinaryInvocation(t *testing.T) {
	inv, err := Admit([]string{"ssh", "user@1.2.3.4"}, 100)
	require.NoError(t, err)
	assert.Equal(t, SSH, inv.Verb)
	assert.Equal(t, []string{"user@1.2.3.4"}, inv.Args)
}

func TestAdmitArgumentLengthBound(t *testing.T) {
	_, err := Admit([]string{"ping", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, 100)
	assert.Error(t, err)
}

func TestSSHPort(t *testing.T) {
	port, err := SSHPort([]string{"user@host"})
	require.NoError(t, err)
	assert.Equal(t, 22, port)

	port, err = SSHPort([]string{"-p", "2222", "user@host"})
	require.NoError(t, err)
	assert.Equal(t, 2222, port)

	_, err = SSHPort([]string{"-p", "22abc", "user@host"})
	assert.Error(t, err, "malformed -p port must be rejected, not silently defaulted")

	_, err = SSHPort([]string{"-p", "70000", "user@host"})
	assert.Error(t, err, "out-of-range port must be rejected")

	_, err = SSHPort([]string{"-p"})
	assert.Error(t, err, "-p with no following token must be rejected")
}

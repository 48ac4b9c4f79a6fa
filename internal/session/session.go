// Package session implements the session loop (C8): read a line,
// push it through the sanitizer, tokenizer, and command gate, run the
// ssh pre-flight when applicable, and hand the admitted invocation to
// the PTY executor. Ported from the while (g_running) loop in the
// original secure_shell.cpp's main.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"secureshell/internal/apperror"
	"secureshell/internal/config"
	"secureshell/internal/gate"
	"secureshell/internal/knownhosts"
	"secureshell/internal/netprobe"
	"secureshell/internal/procstate"
	"secureshell/internal/ptyexec"
	"secureshell/internal/sanitize"
)

const prompt = "secure-shell> "

// Loop runs the interactive read-gate-execute cycle until end-of-input
// on in, a literal "exit" line, or procstate.Running() is cleared. It
// never returns an error for recoverable conditions: those are
// logged and reported to out/errOut, and the loop continues.
func Loop(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out, errOut io.Writer) {
	reader := bufio.NewReader(in)
	deadline, _ := in.(interface {
		SetReadDeadline(t time.Time) error
	})

	logLocalContext(logger)

	for procstate.Running() {
		fmt.Fprint(out, prompt)

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		line = strings.TrimRight(line, "\n\r")

		logger.Info("user input", "line", line)

		clean := sanitize.Line(line)
		if clean == "" {
			continue
		}
		if clean == "exit" {
			logger.Info("exiting shell")
			break
		}

		tokens, terr := gate.Tokenize(clean, cfg.MaxArgs, cfg.MaxArgLength)
		if terr != nil {
			reportRejection(logger, errOut, terr, "input too long")
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		invocation, gerr := gate.Admit(tokens, cfg.MaxArgLength)
		if gerr != nil {
			reportRejection(logger, errOut, gerr, "rejected")
			continue
		}

		if invocation.Verb == gate.SSH {
			if !runSSHPreflight(ctx, logger, errOut, reader, invocation) {
				continue
			}
		}

		logger.Info("executing command", "verb", invocation.Verb, "args", invocation.Args)

		timeout := time.Duration(cfg.CommandTimeout) * time.Second
		result, rerr := ptyexec.Run(ctx, logger, reader, deadline, string(invocation.Verb), invocation.Args, timeout)
		if rerr != nil {
			logger.Error("error executing command", "error", rerr)
			fmt.Fprintf(errOut, "Error executing command: %v\n", rerr)
			continue
		}
		if result.TimedOut {
			fmt.Fprintf(errOut, "Command timed out after %d seconds.\n", cfg.CommandTimeout)
		}

		if err != nil {
			break
		}
	}
}

// reportRejection logs a validation failure at warn level and writes
// a fixed, user-visible diagnostic: no stack trace, just the concise
// message.
func reportRejection(logger *slog.Logger, errOut io.Writer, err error, fallback string) {
	message := fallback
	var appErr *apperror.Error
	if ae, ok := err.(*apperror.Error); ok {
		appErr = ae
		message = ae.Message
	}
	logger.Warn("rejected input", "error", err)

	switch message {
	case "command not allowed":
		fmt.Fprintln(errOut, "Error: Command not allowed.")
	case "invalid or unsafe arguments":
		fmt.Fprintln(errOut, "Error: Invalid or unsafe arguments.")
	case "input too long":
		fmt.Fprintln(errOut, "Error: Input too long.")
	case "too many arguments":
		fmt.Fprintln(errOut, "Error: Too many arguments.")
	default:
		if appErr != nil {
			fmt.Fprintf(errOut, "Error: %s\n", appErr.Message)
		} else {
			fmt.Fprintln(errOut, "Error: Invalid input.")
		}
	}
}

// runSSHPreflight applies C4 and C5 ahead of an ssh invocation. It
// returns false whenever any step aborts the invocation, in which
// case the caller must continue the session loop without executing.
func runSSHPreflight(ctx context.Context, logger *slog.Logger, errOut io.Writer, in *bufio.Reader, inv *gate.Invocation) bool {
	hostname := extractHostname(inv.Args)

	if !netprobe.ValidHostname(ctx, hostname) {
		logger.Warn("invalid hostname or IP", "hostname", hostname)
		fmt.Fprintln(errOut, "Error: Invalid hostname or IP address.")
		return false
	}

	port, perr := gate.SSHPort(inv.Args)
	if perr != nil {
		logger.Warn("invalid ssh port", "error", perr)
		fmt.Fprintf(errOut, "Error: %v\n", perr)
		return false
	}

	if !netprobe.Reachable(ctx, hostname) {
		fmt.Fprintf(errOut, "Warning: Host %s is not responding to ping.\n", hostname)
		if !confirm(in, errOut, "Do you want to continue? (yes/no): ") {
			logger.Info("ssh connection aborted by user for non-responsive host", "hostname", hostname)
			return false
		}
	}

	if !netprobe.PortOpen(ctx, hostname, port) {
		fmt.Fprintf(errOut, "Warning: SSH port %d is not open on host %s.\n", port, hostname)
		if !confirm(in, errOut, "Do you want to continue? (yes/no): ") {
			logger.Info("ssh connection aborted by user for closed port", "hostname", hostname)
			return false
		}
	}

	if !knownhosts.Known(ctx, hostname) {
		fmt.Fprintf(errOut, "The authenticity of host '%s' cannot be established.\n", hostname)
		if !confirm(in, errOut, "Are you sure you want to continue connecting (yes/no)? ") {
			logger.Info("ssh connection aborted by user for host", "hostname", hostname)
			fmt.Fprintln(errOut, "Error: Connection aborted by the user.")
			return false
		}

		fingerprints, aerr := knownhosts.Acquire(ctx, hostname)
		if aerr != nil {
			logger.Error("unable to add ssh host key", "hostname", hostname, "error", aerr)
			fmt.Fprintf(errOut, "Error: Unable to add the host key for %s.\n", hostname)
			return false
		}
		logger.Info("added ssh host key", "hostname", hostname, "keys", len(fingerprints))
	}

	return true
}

// extractHostname derives the ssh target: the substring of the final
// positional argument after the last '@', or the full token if there
// is none.
func extractHostname(args []string) string {
	if len(args) == 0 {
		return ""
	}
	last := args[len(args)-1]
	if idx := strings.LastIndex(last, "@"); idx >= 0 {
		return last[idx+1:]
	}
	return last
}

// confirm prompts with message and reads one line from in, returning
// true iff the response is the literal "yes". in must be the same
// buffered reader the session loop uses for its main input, so a
// prompt never drops bytes the loop's reader has already buffered.
func confirm(in *bufio.Reader, out io.Writer, message string) bool {
	fmt.Fprint(out, message)
	response, _ := in.ReadString('\n')
	return strings.TrimSpace(response) == "yes"
}

// logLocalContext records the host's outbound-facing address and, if
// set, the SSH_CLIENT environment variable, exactly as
// get_local_ip/get_ssh_client_ip do in the original source. Both are
// diagnostic only: neither value gates any decision here.
func logLocalContext(logger *slog.Logger) {
	if ip := localOutboundIP(); ip != "" {
		logger.Info("local IP address", "ip", ip)
	}
	if client := os.Getenv("SSH_CLIENT"); client != "" {
		logger.Info("operator SSH_CLIENT", "ssh_client", client)
	}
}

func localOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}

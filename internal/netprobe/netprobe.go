// Package netprobe implements the ssh pre-flight network checks
// (C4): hostname validation, the ICMP reachability probe (delegated
// to the external ping binary), and the TCP port probe (a
// non-blocking connect with a bounded wait), ported from
// is_valid_hostname, ping_host, and is_port_open in the original
// secure_shell.cpp.
package netprobe

import (
	"context"
	"net"
	"os/exec"
	"strconv"
	"time"
)

const (
	// reachabilityTimeout bounds both the ICMP probe (one echo
	// request) and the TCP connect probe.
	reachabilityTimeout = 5 * time.Second

	// DefaultSSHPort is used by the port probe when the ssh
	// invocation did not override it with -p.
	DefaultSSHPort = 22
)

// ValidHostname reports whether host parses as an IPv4 literal or
// resolves via the system resolver. A resolver error makes the
// hostname invalid, mirroring is_valid_hostname's treatment of a
// non-zero getaddrinfo return.
func ValidHostname(ctx context.Context, host string) bool {
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return true
	}

	resolver := net.Resolver{}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	return err == nil && len(addrs) > 0
}

// runPing execs the ping probe. It is a package variable, not a
// direct exec.CommandContext call inside Reachable, so tests can
// substitute a fake runner the way doctor.RunAll in the pack takes an
// injected command runner instead of shelling out for real.
var runPing = func(ctx context.Context, host string) error {
	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", "5", host)
	return cmd.Run()
}

// Reachable runs `ping -c 1 -W 5 <host>` and reports whether it
// exited zero. It execs the binary directly (no shell), even though
// host has already passed ValidHostname upstream.
func Reachable(ctx context.Context, host string) bool {
	ctx, cancel := context.WithTimeout(ctx, reachabilityTimeout)
	defer cancel()

	return runPing(ctx, host) == nil
}

// PortOpen attempts a TCP connection to host:port with a bounded
// timeout, reporting whether it succeeded. net.Dialer already
// performs the equivalent of the original's non-blocking connect +
// select-on-writability + SO_ERROR sequence; Go's net package has no
// lower-level portable substitute worth hand-rolling here.
func PortOpen(ctx context.Context, host string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, reachabilityTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: reachabilityTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

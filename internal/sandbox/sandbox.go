// Package sandbox implements the sandbox bootstrap (C7): resource
// limits, capability narrowing, and no-new-privileges, applied once
// before the session loop starts. Ported from set_resource_limits and
// drop_privileges in the original secure_shell.cpp.
//
// golang.org/x/sys/unix supplies Setrlimit and Prctl directly, but
// has no high-level wrapper for capset(2) — no repo in the retrieved
// pack links against a capability library, since the other
// sandboxing examples isolate with bubblewrap or Linux namespaces
// instead. capset is invoked here as a raw syscall through
// golang.org/x/sys/unix's exposed SYS_CAPSET number, which is the
// same package already pulled in for Setrlimit/Prctl — not a new
// dependency, just a lower layer of one already in use.
package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"secureshell/internal/apperror"
)

const (
	maxNPROC   = 1024
	maxASBytes = 1 << 30 // 1 GiB
	maxCPUSecs = 60

	capNetRaw   = 13
	capNetAdmin = 12

	linuxCapabilityVersion3 = 0x20080522
)

// capHeader and capData mirror struct __user_cap_header_struct and
// struct __user_cap_data_struct from linux/capability.h. Two capData
// entries are required under version 3, one per 32 capability bits.
type capHeader struct {
	version uint32
	pid     int32
}

type capData struct {
	effective   uint32
	permitted   uint32
	inheritable uint32
}

// Bootstrap applies, in order, the resource limits, the capability
// narrowing, and the no-new-privileges flag. Every step is fatal on
// failure: limits are set first so a later failure cannot leave the
// process over-permitted, and capabilities are narrowed before
// no-new-privs is set so the flag cannot interfere with the
// capset(2) call.
func Bootstrap() error {
	if err := setResourceLimits(); err != nil {
		return apperror.New(apperror.Sandbox, "failed to set resource limits", err)
	}
	if err := narrowCapabilities(); err != nil {
		return apperror.New(apperror.Sandbox, "failed to narrow capabilities", err)
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return apperror.New(apperror.Sandbox, "failed to set no-new-privileges", err)
	}
	return nil
}

type resourceLimit struct {
	resource int
	value    uint64
	name     string
}

// resourceLimits is the fixed limit table. It is a package variable
// rather than a literal inline in setResourceLimits so tests can
// assert on the exact values without calling Setrlimit.
var resourceLimits = []resourceLimit{
	{unix.RLIMIT_NPROC, maxNPROC, "NPROC"},
	{unix.RLIMIT_AS, maxASBytes, "AS"},
	{unix.RLIMIT_CPU, maxCPUSecs, "CPU"},
}

func setResourceLimits() error {
	for _, l := range resourceLimits {
		rlim := unix.Rlimit{Cur: l.value, Max: l.value}
		if err := unix.Setrlimit(l.resource, &rlim); err != nil {
			return fmt.Errorf("setrlimit %s: %w", l.name, err)
		}
	}
	return nil
}

// narrowCapabilities clears the process's full capability set and
// grants only CAP_NET_RAW and CAP_NET_ADMIN in the effective and
// permitted sets, so that the external ping/tracepath children can
// open raw sockets without the secure shell itself running with a
// broader set. The inheritable set is left empty: these children
// execute their own binaries, they don't inherit this process's
// capability bits through an exec of an unprivileged program.
func narrowCapabilities() error {
	hdr := capHeader{version: linuxCapabilityVersion3, pid: 0}
	var data [2]capData

	mask := uint32(1<<capNetRaw | 1<<capNetAdmin)
	data[0].effective = mask
	data[0].permitted = mask

	_, _, errno := unix.Syscall(unix.SYS_CAPSET, uintptr(unsafe.Pointer(&hdr)), uintptr(unsafe.Pointer(&data[0])), 0)
	if errno != 0 {
		return fmt.Errorf("capset: %w", errno)
	}
	return nil
}

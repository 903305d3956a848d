package service

import "os"

// PrivilegeCheck reports whether the process may change system DNS state.
type PrivilegeCheck func() bool

// RunningAsRoot is the default PrivilegeCheck.
func RunningAsRoot() bool { return os.Geteuid() == 0 }

// AlwaysPrivileged disables the check.
func AlwaysPrivileged() bool { return true }

// RequirePrivileged returns a FORBIDDEN error when check fails.
func RequirePrivileged(check PrivilegeCheck) error {
	if check == nil || check() {
		return nil
	}
	return forbidden("this operation requires root privileges")
}

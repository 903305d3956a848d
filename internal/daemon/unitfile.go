// Package daemon integrates with the local DoH forwarding daemon: it reads
// and rewrites the daemon's systemd unit, infers the active upstream from
// it, controls the unit through systemd, and reports host network facts.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/facebookgo/atomicfile"
)

// ErrNoExecStart is returned when a unit file has no ExecStart= line.
var ErrNoExecStart = errors.New("unit file has no ExecStart line")

var upstreamRe = regexp.MustCompile(`--upstream\s+(https?://[^\s/]+(?:/\S*)?)`)

// ParseUpstream returns the first --upstream URL found in unit file content.
func ParseUpstream(content string) (string, bool) {
	m := upstreamRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExecStartLine renders the proxy-dns command line for upstream.
func ExecStartLine(binary string, port int, upstream string) string {
	return "ExecStart=" + binary + " proxy-dns --port " + strconv.Itoa(port) + " --upstream " + upstream
}

// RewriteExecStart replaces every ExecStart= line of content with the
// proxy-dns command for upstream. All other lines are kept byte for byte.
func RewriteExecStart(content, binary string, port int, upstream string) (string, error) {
	lines := strings.SplitAfter(content, "\n")
	replaced := false
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "ExecStart=") {
			continue
		}
		eol := ""
		if strings.HasSuffix(line, "\n") {
			eol = "\n"
		}
		lines[i] = ExecStartLine(binary, port, upstream) + eol
		replaced = true
	}
	if !replaced {
		return "", ErrNoExecStart
	}
	return strings.Join(lines, ""), nil
}

// UnitFile is the systemd unit of the forwarding daemon.
type UnitFile struct {
	Path string
}

// BackupPath is where Write keeps the previous content.
func (u *UnitFile) BackupPath() string { return u.Path + ".backup" }

// Read returns the unit file content.
func (u *UnitFile) Read() (string, error) {
	b, err := os.ReadFile(u.Path)
	if err != nil {
		return "", fmt.Errorf("read unit file: %w", err)
	}
	return string(b), nil
}

// Write atomically replaces the unit file, keeping its mode, after copying
// the current content to BackupPath.
func (u *UnitFile) Write(content string) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(u.Path); err == nil {
		mode = fi.Mode().Perm()
		if err := copyFile(u.Path, u.BackupPath(), mode); err != nil {
			return fmt.Errorf("backup unit file: %w", err)
		}
	}
	return writeAtomic(u.Path, mode, []byte(content))
}

func writeAtomic(path string, mode os.FileMode, data []byte) error {
	f, err := atomicfile.New(path, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Abort()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := atomicfile.New(dst, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Abort()
		return err
	}
	return out.Close()
}

// Package arch describes the host a build runs on and selects
// platform-specific recipe variants.
package arch

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrUnsupportedHost is returned by Detect on hosts the engine cannot build for.
var ErrUnsupportedHost = errors.New("unsupported host")

// Arch identifies the host operating system, distribution and pointer width.
type Arch struct {
	OS          string // "linux" or "osx"
	Dist        string // lowercase os-release ID, empty when unknown
	DistVersion string
	Machine     string // uname machine, e.g. x86_64
	Bits        int
}

// OSBits returns the os+bits key, e.g. "linux64".
func (a Arch) OSBits() string {
	return a.OS + strconv.Itoa(a.Bits)
}

// Key returns the distribution name when known, otherwise OSBits.
func (a Arch) Key() string {
	if a.Dist != "" {
		return a.Dist
	}
	return a.OSBits()
}

func (a Arch) String() string {
	if a.Dist == "" {
		return fmt.Sprintf("%s (%s)", a.OSBits(), a.Machine)
	}
	return fmt.Sprintf("%s %s %s (%s)", a.OSBits(), a.Dist, a.DistVersion, a.Machine)
}

const osReleasePath = "/etc/os-release"

// Detect inspects the running host.
func Detect() (Arch, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Arch{}, fmt.Errorf("uname: %w", err)
	}
	return detect(unix.ByteSliceToString(u.Sysname[:]), unix.ByteSliceToString(u.Machine[:]), osReleasePath)
}

func detect(sysname, machine, osRelease string) (Arch, error) {
	a := Arch{Machine: machine}
	switch strings.ToLower(sysname) {
	case "linux":
		a.OS = "linux"
		if id, version, err := readOSRelease(osRelease); err == nil {
			a.Dist, a.DistVersion = id, version
		}
	case "darwin":
		a.OS = "osx"
	default:
		return Arch{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedHost, sysname, machine)
	}
	bits, ok := machineBits(machine)
	if !ok {
		return Arch{}, fmt.Errorf("%w: unknown machine %q", ErrUnsupportedHost, machine)
	}
	a.Bits = bits
	return a, nil
}

func machineBits(machine string) (int, bool) {
	switch machine {
	case "x86_64", "amd64", "aarch64", "arm64", "ppc64", "ppc64le", "s390x", "riscv64":
		return 64, true
	case "i386", "i486", "i586", "i686", "armv6l", "armv7l", "arm":
		return 32, true
	}
	return 0, false
}

// readOSRelease returns the ID and VERSION_ID fields of an os-release file.
func readOSRelease(path string) (id, version string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"'`)
		switch key {
		case "ID":
			id = strings.ToLower(val)
		case "VERSION_ID":
			version = val
		}
	}
	return id, version, scanner.Err()
}

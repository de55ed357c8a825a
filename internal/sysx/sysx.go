// Package sysx backs the single-purpose identity tools: whoami, logname
// and hostid.
package sysx

import (
	"encoding/binary"
	"net"
	"os"
	"os/user"
	"strconv"

	"emperror.dev/errors"
)

// Whoami resolves the name of the effective user.
func Whoami() (string, error) {
	uid := os.Geteuid()
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "", errors.Errorf("cannot find name for user ID %d", uid)
	}
	return u.Username, nil
}

// Logname returns the name the user logged in under. Without a utmp
// database the login name survives only in the environment, so LOGNAME
// is the sole source consulted.
func Logname() (string, error) {
	if name := os.Getenv("LOGNAME"); name != "" {
		return name, nil
	}
	return "", errors.New("no login name")
}

// Hostid derives the 32-bit host identifier the way glibc's gethostid
// does: the first four bytes of /etc/hostid when present, otherwise the
// host's IPv4 address with its halves swapped. The value is always
// masked to 32 bits.
func Hostid() uint32 {
	if raw, err := os.ReadFile("/etc/hostid"); err == nil && len(raw) >= 4 {
		return binary.LittleEndian.Uint32(raw)
	}
	name, err := os.Hostname()
	if err != nil {
		return 0
	}
	addrs, err := net.LookupIP(name)
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		if v4 := addr.To4(); v4 != nil {
			a := binary.BigEndian.Uint32(v4)
			return a<<16 | a>>16
		}
	}
	return 0
}

// FormatHostid renders a host identifier the way hostid prints it,
// eight lowercase hex digits.
func FormatHostid(id uint32) string {
	out := strconv.FormatUint(uint64(id), 16)
	for len(out) < 8 {
		out = "0" + out
	}
	return out
}

// Package mode parses chmod style mode strings, both octal and symbolic,
// and applies them to existing permission bits.
package mode

import (
	"strconv"
	"strings"

	"emperror.dev/errors"
)

// Bits covers the twelve permission bits a mode string may touch.
const Bits = 0o7777

type action struct {
	op   byte // '+', '-' or '='
	bits uint32
	// condX grants execute only to directories and files that already
	// carry an execute bit somewhere.
	condX bool
	// copyFrom is 'u', 'g' or 'o' for permission-copy changes such as
	// "g=u", zero otherwise.
	copyFrom byte
}

type clause struct {
	numeric bool

	// Numeric form.
	numOp   byte // 0 when the digits stand alone
	numBits uint32
	// numWide is set when the digits spell out the high bits, "0755" or
	// "00755" as opposed to "755".
	numWide bool

	// Symbolic form.
	mask        uint32 // from the who letters, Bits when none given
	explicitWho bool
	actions     []action
}

// A Set is a parsed mode string, a comma separated list of clauses that
// are folded over a starting permission value in order.
type Set struct {
	clauses []clause
}

// Parse parses a chmod mode argument. Clauses are separated by commas;
// a clause containing a digit is octal, anything else is symbolic.
func Parse(s string) (*Set, error) {
	if s == "" {
		return nil, errors.New("invalid mode: ''")
	}
	set := &Set{}
	for _, part := range strings.Split(s, ",") {
		var c clause
		var err error
		if strings.ContainsAny(part, "0123456789") {
			c, err = parseNumeric(part)
		} else {
			c, err = parseSymbolic(part)
		}
		if err != nil {
			return nil, err
		}
		set.clauses = append(set.clauses, c)
	}
	return set, nil
}

func parseNumeric(s string) (clause, error) {
	c := clause{numeric: true}
	rest := s
	if len(rest) > 0 && (rest[0] == '+' || rest[0] == '-' || rest[0] == '=') {
		c.numOp = rest[0]
		rest = rest[1:]
	}
	v, err := strconv.ParseUint(rest, 8, 32)
	if err != nil || v > Bits {
		return clause{}, errors.Errorf("invalid mode: '%s'", s)
	}
	c.numBits = uint32(v)
	c.numWide = len(rest) >= 4
	return c, nil
}

func parseSymbolic(s string) (clause, error) {
	c := clause{mask: 0}
	rest := s
loop:
	for len(rest) > 0 {
		switch rest[0] {
		case 'u':
			c.mask |= 0o4700
		case 'g':
			c.mask |= 0o2070
		case 'o':
			c.mask |= 0o1007
		case 'a':
			c.mask |= Bits
		default:
			break loop
		}
		c.explicitWho = true
		rest = rest[1:]
	}
	if !c.explicitWho {
		c.mask = Bits
	}
	if len(rest) == 0 {
		return clause{}, errors.Errorf("invalid mode: '%s'", s)
	}
	for len(rest) > 0 {
		op := rest[0]
		if op != '+' && op != '-' && op != '=' {
			return clause{}, errors.Errorf("invalid mode: '%s'", s)
		}
		rest = rest[1:]
		act := action{op: op}
	perms:
		for len(rest) > 0 {
			switch rest[0] {
			case 'r':
				act.bits |= 0o444
			case 'w':
				act.bits |= 0o222
			case 'x':
				act.bits |= 0o111
			case 'X':
				act.condX = true
			case 's':
				act.bits |= 0o6000
			case 't':
				act.bits |= 0o1000
			case 'u', 'g', 'o':
				// Permission copy stands alone: "g=u" is valid,
				// "g=ur" is not.
				if act.bits != 0 || act.condX {
					return clause{}, errors.Errorf("invalid mode: '%s'", s)
				}
				act.copyFrom = rest[0]
				rest = rest[1:]
				break perms
			default:
				break perms
			}
			rest = rest[1:]
		}
		c.actions = append(c.actions, act)
	}
	return c, nil
}

// Apply folds the set over cur and returns the resulting permission
// bits. Changes without an explicit who list are filtered through umask.
// isDir enables X and the setuid/setgid retention rule for "=".
func (s *Set) Apply(cur uint32, isDir bool, umask uint32) uint32 {
	for _, c := range s.clauses {
		cur = c.apply(cur, isDir, umask)
	}
	return cur
}

// ApplyNaive is Apply with a zero umask. Comparing the two results
// detects requested bits that umask silently withheld.
func (s *Set) ApplyNaive(cur uint32, isDir bool) uint32 {
	return s.Apply(cur, isDir, 0)
}

func (c clause) apply(cur uint32, isDir bool, umask uint32) uint32 {
	if c.numeric {
		switch c.numOp {
		case '+':
			return cur | c.numBits
		case '-':
			return cur &^ c.numBits
		default:
			bits := c.numBits
			// A short octal mode keeps a directory's setuid and
			// setgid bits; four or more digits spell them out, so
			// "0755" clears them where "755" retains them.
			if isDir && bits&0o7000 == 0 && !c.numWide {
				bits |= cur & 0o7000
			}
			return bits
		}
	}
	for _, act := range c.actions {
		srwx := act.bits
		if act.condX && (isDir || cur&0o111 != 0) {
			srwx |= 0o111
		}
		if act.copyFrom != 0 {
			srwx = spread(cur, act.copyFrom)
		}
		if !c.explicitWho {
			srwx &^= umask
		}
		switch act.op {
		case '+':
			cur |= srwx & c.mask
		case '-':
			cur &^= srwx & c.mask
		case '=':
			if isDir && srwx&0o7000 == 0 {
				srwx |= cur & 0o7000
			}
			cur = (cur &^ c.mask) | (srwx & c.mask)
		}
	}
	return cur
}

// spread replicates one permission triad of cur across all three so the
// clause mask can select the destination.
func spread(cur uint32, from byte) uint32 {
	var triad uint32
	switch from {
	case 'u':
		triad = (cur >> 6) & 0o7
	case 'g':
		triad = (cur >> 3) & 0o7
	case 'o':
		triad = cur & 0o7
	}
	return triad<<6 | triad<<3 | triad
}

// Display renders permission bits the way ls does, nine characters with
// s/S, s/S and t/T standing in for setuid, setgid and sticky.
func Display(m uint32) string {
	var b [9]byte
	marks := []struct {
		bit     uint32
		special uint32
		set     byte
		unset   byte
	}{
		{0o400, 0, 'r', '-'}, {0o200, 0, 'w', '-'}, {0o100, 0o4000, 'x', '-'},
		{0o040, 0, 'r', '-'}, {0o020, 0, 'w', '-'}, {0o010, 0o2000, 'x', '-'},
		{0o004, 0, 'r', '-'}, {0o002, 0, 'w', '-'}, {0o001, 0o1000, 'x', '-'},
	}
	for i, mk := range marks {
		c := mk.unset
		if m&mk.bit != 0 {
			c = mk.set
		}
		if mk.special != 0 && m&mk.special != 0 {
			if m&mk.bit != 0 {
				c = 's'
			} else {
				c = 'S'
			}
			if mk.special == 0o1000 {
				if m&mk.bit != 0 {
					c = 't'
				} else {
					c = 'T'
				}
			}
		}
		b[i] = c
	}
	return string(b[:])
}

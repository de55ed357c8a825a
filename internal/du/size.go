package du

import (
	"fmt"
	"os"
	"strconv"

	"emperror.dev/errors"
)

// SizeFormat selects how aggregated sizes are rendered.
type SizeFormat int

const (
	// FormatBlocks divides by the configured block size, rounding up.
	FormatBlocks SizeFormat = iota
	// FormatHumanBinary renders powers of 1024 with K/M/G suffixes.
	FormatHumanBinary
	// FormatHumanDecimal renders powers of 1000 with k/M/G suffixes.
	FormatHumanDecimal
)

var suffixMultipliers = map[string]uint64{
	"K": 1 << 10, "M": 1 << 20, "G": 1 << 30, "T": 1 << 40, "P": 1 << 50, "E": 1 << 60,
	"KiB": 1 << 10, "MiB": 1 << 20, "GiB": 1 << 30, "TiB": 1 << 40, "PiB": 1 << 50, "EiB": 1 << 60,
	"KB": 1e3, "MB": 1e6, "GB": 1e9, "TB": 1e12, "PB": 1e15, "EB": 1e18,
	"B": 1,
}

// ParseBlockSize understands "512", "1K", "1KiB", "1MB" and a bare
// suffix such as "K". The multiplier rules follow GNU: K is 1024, KB is
// 1000, KiB is 1024.
func ParseBlockSize(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("invalid block size argument: ''")
	}
	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	num := uint64(1)
	if digits > 0 {
		v, err := strconv.ParseUint(s[:digits], 10, 64)
		if err != nil {
			return 0, errors.Errorf("invalid block size argument: '%s'", s)
		}
		num = v
	}
	suffix := s[digits:]
	mult := uint64(1)
	if suffix != "" {
		m, ok := suffixMultipliers[suffix]
		if !ok {
			return 0, errors.Errorf("invalid block size argument: '%s'", s)
		}
		mult = m
	} else if digits == 0 {
		return 0, errors.Errorf("invalid block size argument: '%s'", s)
	}
	if num == 0 {
		return 0, errors.Errorf("invalid block size argument: '%s'", s)
	}
	return num * mult, nil
}

// BlockSizeFromEnv resolves the default block size the way du does:
// explicit argument, then DU_BLOCK_SIZE, BLOCK_SIZE and BLOCKSIZE, then
// 512 under POSIXLY_CORRECT and 1024 otherwise.
func BlockSizeFromEnv(arg string) (uint64, error) {
	if arg != "" {
		return ParseBlockSize(arg)
	}
	for _, name := range []string{"DU_BLOCK_SIZE", "BLOCK_SIZE", "BLOCKSIZE"} {
		if v, ok := os.LookupEnv(name); ok {
			if size, err := ParseBlockSize(v); err == nil {
				return size, nil
			}
		}
	}
	if _, ok := os.LookupEnv("POSIXLY_CORRECT"); ok {
		return 512, nil
	}
	return 1024, nil
}

func humanReadable(size uint64, base uint64) string {
	units := "KMGTPE"
	if base == 1000 {
		units = "kMGTPE"
	}
	if size < base {
		return strconv.FormatUint(size, 10)
	}
	scaled := float64(size)
	exp := 0
	for scaled >= float64(base) && exp < len(units) {
		scaled /= float64(base)
		exp++
	}
	// du rounds sizes up, never down.
	if scaled < 10 {
		v := ceilTenth(scaled)
		if v >= 10 {
			return fmt.Sprintf("%.0f%c", v, units[exp-1])
		}
		return fmt.Sprintf("%.1f%c", v, units[exp-1])
	}
	return fmt.Sprintf("%.0f%c", ceilWhole(scaled), units[exp-1])
}

func ceilTenth(v float64) float64 {
	scaled := v * 10
	if scaled != float64(uint64(scaled)) {
		scaled = float64(uint64(scaled) + 1)
	}
	return scaled / 10
}

func ceilWhole(v float64) float64 {
	if v != float64(uint64(v)) {
		return float64(uint64(v) + 1)
	}
	return v
}

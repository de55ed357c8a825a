//go:build !unix

package config

// captureUmask has nothing to read on platforms without umask(2).
func captureUmask() uint32 {
	return 0
}

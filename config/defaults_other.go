//go:build !linux

package config

// applyPlatformDefaults fills values whose defaults differ per platform.
// Darwin and the BSDs report zero blocks for directories du cannot read.
func applyPlatformDefaults(c *Configuration) {
	if c.Traversal.UnreadableDirBlocks < 0 {
		c.Traversal.UnreadableDirBlocks = 0
	}
}

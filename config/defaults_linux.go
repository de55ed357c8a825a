//go:build linux

package config

// applyPlatformDefaults fills values whose defaults differ per platform.
// Most Linux filesystems allocate one 4K block for a directory, which
// st_blocks reports as eight 512-byte units.
func applyPlatformDefaults(c *Configuration) {
	if c.Traversal.UnreadableDirBlocks < 0 {
		c.Traversal.UnreadableDirBlocks = 8
	}
}

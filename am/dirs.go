package am

import (
	"os"

	"github.com/teranos/xalq/errors"
)

// Dirs returns the working directories in creation order
func (c *EngineConfig) Dirs() []string {
	return []string{
		c.Paths.Processing,
		c.Paths.Output,
		c.Paths.Prompts,
		c.Paths.Templates,
		c.Paths.Error,
		c.Paths.Logs,
	}
}

// EnsureDirs creates the working directory layout. Empty entries are skipped.
func EnsureDirs(cfg *EngineConfig) error {
	for _, dir := range cfg.Dirs() {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	return nil
}

package metrics

import (
	"path/filepath"

	"codeberg.org/mutker/coreprobe/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/coreprobe/metrics.db"
	defaultBatchSize    = 10
	defaultBatchTimeout = 60
	backupDirName       = "backups"
)

type Config struct {
	DBPath       string
	BatchSize    int
	BatchTimeout int // seconds
	Enabled      bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Enabled:      false,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.Enabled && c.BatchSize < 1 {
		return errFactory.WithData(ErrInvalidConfig, c.BatchSize)
	}
	return nil
}

// backupDir sits next to the database file.
func (c Config) backupDir() string {
	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}

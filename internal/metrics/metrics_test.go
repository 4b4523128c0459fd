package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/logger"
	"codeberg.org/mutker/coreprobe/internal/readings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, batch int) Config {
	t.Helper()

	return Config{
		DBPath:    filepath.Join(t.TempDir(), "history", "metrics.db"),
		BatchSize: batch,
		Enabled:   true,
	}
}

func count(t *testing.T, path, table string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func linuxSnapshot() *MetricsSnapshot {
	return FromSensorReport(&readings.SensorReport{
		ReportID:    "linux-1",
		CollectedAt: time.Unix(1700000000, 0),
		Packages: []readings.PackageReading{{
			ID:          "0",
			Adapter:     "coretemp-isa-0000",
			Temperature: 45,
			High:        80,
			Critical:    100,
			Cores: []readings.CoreReading{
				{Name: "Core-0", Temperature: 42},
				{Name: "Core-1", Temperature: 47},
			},
		}},
	})
}

func TestFromSensorReport(t *testing.T) {
	snapshot := linuxSnapshot()

	require.Len(t, snapshot.Packages, 1)
	row := snapshot.Packages[0]
	assert.Equal(t, "linux-1", snapshot.ReportID)
	assert.Equal(t, "coretemp-isa-0000", row.Adapter)
	assert.Equal(t, 2, row.CoreCount)
	assert.Equal(t, 47.0, row.Hottest)
	assert.Empty(t, snapshot.CPUs)
}

func TestFromESXiReport(t *testing.T) {
	snapshot := FromESXiReport(&readings.ESXiReport{
		ReportID: "esxi-1",
		Host: readings.SystemTopology{
			CPUs: []readings.CPUDetail{
				{CPUID: "0", SocketID: "0", Cores: []readings.CoreDetail{
					{CoreID: "0", Temperature: "52", CoreType: readings.CoreTypeReal},
				}},
				{CPUID: "1", SocketID: "0", Cores: []readings.CoreDetail{
					{CoreID: "0", Temperature: readings.ErrorReadingRegister, CoreType: readings.CoreTypeVirtual},
				}},
			},
		},
	})

	require.Len(t, snapshot.CPUs, 2)
	require.NotNil(t, snapshot.CPUs[0].Temperature)
	assert.Equal(t, 52, *snapshot.CPUs[0].Temperature)
	assert.Nil(t, snapshot.CPUs[1].Temperature)
	assert.Equal(t, readings.CoreTypeVirtual, snapshot.CPUs[1].CoreType)
}

func TestDisabledServiceIsNoop(t *testing.T) {
	collector, err := NewService(Config{})
	require.NoError(t, err)

	assert.NoError(t, collector.Record(context.Background(), linuxSnapshot()))
	assert.NoError(t, collector.Close())
}

func TestValidate(t *testing.T) {
	err := Config{Enabled: true}.Validate()
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))

	err = Config{Enabled: true, DBPath: "x.db"}.Validate()
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))

	assert.NoError(t, DefaultConfig().Validate())
}

func TestRecordFlushesOnBatchSize(t *testing.T) {
	cfg := testConfig(t, 2)
	repo, err := NewRepository(cfg, logger.WithComponent("metrics"))
	require.NoError(t, err)

	require.NoError(t, repo.Record(linuxSnapshot()))
	assert.Equal(t, 0, count(t, cfg.DBPath, "package_readings"))

	require.NoError(t, repo.Record(linuxSnapshot()))
	assert.Equal(t, 2, count(t, cfg.DBPath, "package_readings"))

	require.NoError(t, repo.Close())
}

func TestCloseFlushesBuffer(t *testing.T) {
	cfg := testConfig(t, 10)
	repo, err := NewRepository(cfg, logger.WithComponent("metrics"))
	require.NoError(t, err)

	require.NoError(t, repo.Record(linuxSnapshot()))
	require.NoError(t, repo.Record(FromESXiReport(&readings.ESXiReport{
		ReportID: "esxi-1",
		Host: readings.SystemTopology{CPUs: []readings.CPUDetail{{
			CPUID: "0", SocketID: "0",
			Cores: []readings.CoreDetail{{CoreID: "0", Temperature: "60", CoreType: readings.CoreTypeReal}},
		}}},
	})))

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	assert.Equal(t, 1, count(t, cfg.DBPath, "package_readings"))
	assert.Equal(t, 1, count(t, cfg.DBPath, "cpu_readings"))
}

func TestPeriodicFlush(t *testing.T) {
	cfg := testConfig(t, 100)
	cfg.BatchTimeout = 1
	repo, err := NewRepository(cfg, logger.WithComponent("metrics"))
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Record(linuxSnapshot()))

	assert.Eventually(t, func() bool {
		return count(t, cfg.DBPath, "package_readings") == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRepeatedFlushFailuresDropBuffer(t *testing.T) {
	cfg := testConfig(t, 1)
	store, err := NewRepository(cfg, logger.WithComponent("metrics"))
	require.NoError(t, err)
	repo := store.(*repository)
	require.NoError(t, repo.db.Close())

	for i := 1; i < maxFlushFailures; i++ {
		err := repo.Record(linuxSnapshot())
		assert.True(t, errors.HasCode(err, ErrTransactionFailed))
		assert.Len(t, repo.buffer, i)
	}

	err = repo.Record(linuxSnapshot())
	assert.True(t, errors.HasCode(err, ErrTransactionFailed))
	assert.Empty(t, repo.buffer)
	assert.Zero(t, repo.flushFailures)

	err = repo.Record(linuxSnapshot())
	assert.Error(t, err)
	assert.Len(t, repo.buffer, 1)

	_ = repo.Close()
}

func TestSchemaVersionMismatchCreatesBackup(t *testing.T) {
	cfg := testConfig(t, 1)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := NewRepository(cfg, logger.WithComponent("metrics"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	backups, err := filepath.Glob(filepath.Join(cfg.backupDir(), "metrics_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	db, err = sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestServiceRecordHonoursContext(t *testing.T) {
	collector, err := NewService(testConfig(t, 1))
	require.NoError(t, err)
	defer collector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = collector.Record(ctx, linuxSnapshot())
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))

	err = collector.Record(context.Background(), nil)
	assert.True(t, errors.HasCode(err, ErrInvalidMetrics))
}

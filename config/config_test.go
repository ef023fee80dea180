package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskmanager "github.com/Swind/go-task-manager"
	"github.com/Swind/go-task-manager/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmanager.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoad_Defaults verifies the defaults when nothing is overridden
// Given: no config file and no TASKMGR_ variables
// When: Load is called
// Then: every field carries its default
func TestLoad_Defaults(t *testing.T) {
	// Act
	cfg, err := Load("")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "taskmanager", cfg.Name)
	assert.Equal(t, taskmanager.AutoWorkers, cfg.Workers)
	assert.Equal(t, taskmanager.DefaultReservedThreads, cfg.ReservedThreads)
	assert.Equal(t, EvaluatorWeighted, cfg.Evaluator)
	assert.Equal(t, core.DefaultHighQuota, cfg.HighQuota)
	assert.Equal(t, core.DefaultNormalQuota, cfg.NormalQuota)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "std", cfg.LogBackend)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, 100, cfg.HistorySize)
	assert.Equal(t, cfg, Default())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
name: render
workers: 6
evaluator: strict
log_backend: none
metrics_addr: "127.0.0.1:9100"
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "render", cfg.Name)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, EvaluatorStrict, cfg.Evaluator)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.IsType(t, core.StrictEvaluator{}, cfg.NewEvaluator())
}

// TestLoad_EnvOverridesFile verifies environment precedence
// Given: a file setting workers=6 and TASKMGR_WORKERS=3
// When: Load is called
// Then: the environment value wins
func TestLoad_EnvOverridesFile(t *testing.T) {
	// Arrange
	path := writeConfig(t, "workers: 6\nhigh_quota: 2\n")
	t.Setenv("TASKMGR_WORKERS", "3")
	t.Setenv("TASKMGR_NORMAL_QUOTA", "0")

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2, cfg.HighQuota)
	assert.Equal(t, 0, cfg.NormalQuota)

	eval, ok := cfg.NewEvaluator().(*core.WeightedEvaluator)
	require.True(t, ok)
	assert.Equal(t, 2, eval.HighQuota)
	assert.Equal(t, 0, eval.NormalQuota)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero workers", map[string]string{"TASKMGR_WORKERS": "0"}},
		{"negative workers", map[string]string{"TASKMGR_WORKERS": "-2"}},
		{"negative quota", map[string]string{"TASKMGR_HIGH_QUOTA": "-1"}},
		{"unknown evaluator", map[string]string{"TASKMGR_EVALUATOR": "random"}},
		{"unknown backend", map[string]string{"TASKMGR_LOG_BACKEND": "syslog"}},
		{"bad level", map[string]string{"TASKMGR_LOG_LEVEL": "loud"}},
		{"bad metrics addr", map[string]string{"TASKMGR_METRICS_ADDR": "nowhere"}},
		{"zero history", map[string]string{"TASKMGR_HISTORY_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestOptions_StartsManager verifies the options build a working manager
// Given: a config with two workers and logging disabled
// When: a TaskManager is built from Options and a batch is run
// Then: the manager carries the configured name and runs the batch
func TestOptions_StartsManager(t *testing.T) {
	// Arrange
	t.Setenv("TASKMGR_NAME", "configured")
	t.Setenv("TASKMGR_WORKERS", "2")
	t.Setenv("TASKMGR_LOG_BACKEND", "none")
	cfg, err := Load("")
	require.NoError(t, err)

	opts, err := cfg.Options()
	require.NoError(t, err)
	tm := taskmanager.New(opts...)
	require.NoError(t, tm.Start(cfg.Workers))
	defer tm.Shutdown()

	// Act
	err = tm.Run(taskmanager.PriorityNormal, taskmanager.NewTask(taskmanager.PriorityNormal, func(tc *taskmanager.TaskContext) error {
		return nil
	}))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "configured", tm.Name())
	assert.Equal(t, 2, tm.WorkerCount())
}

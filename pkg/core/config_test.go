package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig must not return nil")
	}
	if cfg.NPU.MaxNeurons != 1_000_000 {
		t.Errorf("expected NPU.MaxNeurons 1000000, got %d", cfg.NPU.MaxNeurons)
	}
	if cfg.NPU.MaxPendingInjections != 1<<16 {
		t.Errorf("expected NPU.MaxPendingInjections 65536, got %d", cfg.NPU.MaxPendingInjections)
	}
	if cfg.BurstLoop.FrequencyHz != 90 {
		t.Errorf("expected BurstLoop.FrequencyHz 90, got %f", cfg.BurstLoop.FrequencyHz)
	}
	if cfg.BurstLoop.ShutdownJoinTimeout != 2*time.Second {
		t.Errorf("expected BurstLoop.ShutdownJoinTimeout 2s, got %v", cfg.BurstLoop.ShutdownJoinTimeout)
	}
	if cfg.ParamQueue.Capacity != 4096 {
		t.Errorf("expected ParamQueue.Capacity 4096, got %d", cfg.ParamQueue.Capacity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfigFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
npu:
  maxNeurons: 2000
burstLoop:
  frequencyHz: 60
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed writing config file: %v", err)
	}

	cfg, err := ConfigFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NPU.MaxNeurons != 2000 {
		t.Errorf("expected overridden NPU.MaxNeurons 2000, got %d", cfg.NPU.MaxNeurons)
	}
	if cfg.BurstLoop.FrequencyHz != 60 {
		t.Errorf("expected overridden BurstLoop.FrequencyHz 60, got %f", cfg.BurstLoop.FrequencyHz)
	}
	// Untouched fields retain defaults.
	if cfg.NPU.MaxSynapses != 10_000_000 {
		t.Errorf("expected default NPU.MaxSynapses, got %d", cfg.NPU.MaxSynapses)
	}
}

func TestConfigFromFileMissing(t *testing.T) {
	if _, err := ConfigFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("BURSTCORE_MAX_NEURONS", "500")
	t.Setenv("BURSTCORE_FREQUENCY_HZ", "120")
	t.Setenv("BURSTCORE_COMPRESS", "false")

	cfg := ConfigFromEnv(nil)
	if cfg.NPU.MaxNeurons != 500 {
		t.Errorf("expected NPU.MaxNeurons 500, got %d", cfg.NPU.MaxNeurons)
	}
	if cfg.BurstLoop.FrequencyHz != 120 {
		t.Errorf("expected BurstLoop.FrequencyHz 120, got %f", cfg.BurstLoop.FrequencyHz)
	}
	if cfg.Connectome.Compress {
		t.Error("expected Connectome.Compress false after env override")
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NPU.MaxNeurons != 1_000_000 {
		t.Errorf("expected default NPU.MaxNeurons, got %d", cfg.NPU.MaxNeurons)
	}
}

func TestApplyCLIOverrides(t *testing.T) {
	cfg := DefaultConfig()
	freq := 45.0
	cfg.ApplyCLIOverrides(&CLIOverrides{FrequencyHz: &freq})

	if cfg.BurstLoop.FrequencyHz != 45.0 {
		t.Errorf("expected overridden FrequencyHz 45, got %f", cfg.BurstLoop.FrequencyHz)
	}
}

func TestApplyCLIOverridesNil(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg
	cfg.ApplyCLIOverrides(nil)
	if *cfg != before {
		t.Error("nil overrides should not mutate config")
	}
}

func TestValidateRejectsBadFrequency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BurstLoop.FrequencyHz = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero frequency")
	}
}

func TestValidateRejectsEmptyGenomePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connectome.GenomeSnapshotPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty genome snapshot path")
	}
}

func TestValidateRejectsZeroCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParamQueue.Capacity = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero param queue capacity")
	}
}

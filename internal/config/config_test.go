package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FilePattern != "ccd*.xml" {
		t.Errorf("default pattern: got %q", cfg.FilePattern)
	}
	if cfg.Append {
		t.Error("append must default to false")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CCDA_SOURCE_DIR", "/data/pending")
	t.Setenv("CCDA_TARGET_DIR", "/data/processed")
	t.Setenv("CCDA_ERROR_DIR", "/data/error")
	t.Setenv("CCDA_FILE_PATTERN", "doc*.xml")
	t.Setenv("CCDA_APPEND", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/data/pending" || cfg.TargetDir != "/data/processed" || cfg.ErrorDir != "/data/error" {
		t.Errorf("directories: %+v", cfg)
	}
	if cfg.FilePattern != "doc*.xml" {
		t.Errorf("pattern: got %q", cfg.FilePattern)
	}
	if !cfg.Append {
		t.Error("append: got false, want true")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		SourceDir:   "/in",
		TargetDir:   "/out",
		ErrorDir:    "/err",
		FilePattern: "ccd*.xml",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing source", func(c *Config) { c.SourceDir = "" }},
		{"missing target", func(c *Config) { c.TargetDir = "" }},
		{"missing error dir", func(c *Config) { c.ErrorDir = "" }},
		{"empty pattern", func(c *Config) { c.FilePattern = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/wippyai/wasm-relink/callconv"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(t.TempDir())
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sentinel != "__Internal" {
		t.Errorf("expected default sentinel __Internal, got %s", cfg.Sentinel)
	}
	if cfg.Entry.Type != "Runtime.Engine" {
		t.Errorf("expected default entry type Runtime.Engine, got %s", cfg.Entry.Type)
	}
	if cfg.Entry.Initialize != "InternalInitialize" || cfg.Entry.Shutdown != "InternalShutdown" {
		t.Errorf("unexpected entry methods %+v", cfg.Entry)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
}

func TestDefaultCallConvMatchesPatcher(t *testing.T) {
	if got, want := DefaultConfig().CallConv.Dialect(), callconv.DefaultDialect(); got != want {
		t.Errorf("default callconv settings = %+v, want %+v", got, want)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg-config")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, path, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != "" {
		t.Errorf("expected no config file, got %s", path)
	}
	want := DefaultConfig()
	if cfg.Sentinel != want.Sentinel || cfg.Entry != want.Entry || cfg.CallConv != want.CallConv || cfg.Log != want.Log {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if len(cfg.LibraryPath) != 0 {
		t.Errorf("expected empty library path, got %v", cfg.LibraryPath)
	}
}

func TestLoad_ConfigDirFile(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, AppName)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
sentinel = "__native"

[entry]
type = "App.Main"

[log]
level = "debug"
development = true
`
	if err := os.WriteFile(filepath.Join(cfgDir, "relink.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != filepath.Join(cfgDir, "relink.toml") {
		t.Errorf("unexpected config path %s", path)
	}
	if cfg.Sentinel != "__native" {
		t.Errorf("sentinel = %s", cfg.Sentinel)
	}
	if cfg.Entry.Type != "App.Main" {
		t.Errorf("entry type = %s", cfg.Entry.Type)
	}
	if cfg.Entry.Initialize != "InternalInitialize" {
		t.Errorf("unset keys should keep defaults, got %s", cfg.Entry.Initialize)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoad_WorkingDirWins(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, AppName)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "relink.toml"), []byte(`sentinel = "from_dir"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile("relink.toml", []byte(`sentinel = "from_cwd"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Sentinel != "from_cwd" {
		t.Errorf("sentinel = %s, want from_cwd", cfg.Sentinel)
	}

	cfg, _, err = Load(LoadOptions{SkipWorkingDir: true})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Sentinel != "from_dir" {
		t.Errorf("sentinel = %s, want from_dir", cfg.Sentinel)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("RELINK_SENTINEL", "__env")
	t.Setenv("RELINK_ENTRY_TYPE", "Env.Type")
	t.Setenv("RELINK_CALLCONV_MARKER", "@cdecl")

	cfg, _, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Sentinel != "__env" {
		t.Errorf("sentinel = %s", cfg.Sentinel)
	}
	if cfg.Entry.Type != "Env.Type" {
		t.Errorf("entry type = %s", cfg.Entry.Type)
	}
	if cfg.CallConv.Dialect().Marker != "@cdecl" {
		t.Errorf("marker = %s", cfg.CallConv.Marker)
	}
}

func TestLoad_CustomPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte(`sentinel = "custom"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, got, err := Load(LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if got != path || cfg.Sentinel != "custom" {
		t.Errorf("unexpected result %s %+v", got, cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "missing custom file", missing: true},
		{name: "invalid toml", content: "sentinel = "},
		{name: "empty sentinel", content: `sentinel = ""`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "relink.toml")
			if !tc.missing {
				if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if _, _, err := Load(LoadOptions{ConfigFilePath: path}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_LibraryPath(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		isolate(t)
		if err := os.WriteFile(ConfigFileName+"."+ConfigFileExt, []byte(`library_path = ["/opt/lib", "/usr/lib/relink"]`), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, _, err := Load(LoadOptions{})
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if !slices.Equal(cfg.LibraryPath, []string{"/opt/lib", "/usr/lib/relink"}) {
			t.Errorf("library path = %v", cfg.LibraryPath)
		}
	})

	t.Run("env", func(t *testing.T) {
		isolate(t)
		t.Setenv("RELINK_LIBRARY_PATH", "/a,/b")
		cfg, _, err := Load(LoadOptions{})
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if !slices.Equal(cfg.LibraryPath, []string{"/a", "/b"}) {
			t.Errorf("library path = %v", cfg.LibraryPath)
		}
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baidakovil/rca"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Provider.Kind != rca.ProviderFake {
		t.Errorf("default provider should be fake, got %s", settings.Provider.Kind)
	}
	if settings.EnableTools {
		t.Error("tools should default to disabled")
	}
	if settings.MaxToolRounds != 5 {
		t.Errorf("unexpected default tool rounds: %d", settings.MaxToolRounds)
	}
	if settings.SandboxInterpreter != "python3" {
		t.Errorf("unexpected default interpreter: %s", settings.SandboxInterpreter)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rca.yaml")
	doc := `
provider: ollama
model: mistral
endpoint: http://localhost:9999
enable_tools: true
max_tool_rounds: 3
sandbox:
  interpreter: python3.12
  timeout: 10s
  max_output_bytes: 1024
event_bus:
  buffer_size: 50
  worker_count: 2
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Provider.Kind != rca.ProviderOllama {
		t.Errorf("expected ollama, got %s", settings.Provider.Kind)
	}
	if settings.Provider.Model != "mistral" || settings.Provider.Endpoint != "http://localhost:9999" {
		t.Errorf("unexpected provider config: %+v", settings.Provider)
	}
	if !settings.EnableTools || settings.MaxToolRounds != 3 {
		t.Errorf("tool settings not applied: %+v", settings)
	}
	if settings.SandboxInterpreter != "python3.12" || settings.SandboxTimeout != 10*time.Second {
		t.Errorf("sandbox settings not applied: %+v", settings)
	}
	if settings.EventBusBufferSize != 50 || settings.EventBusWorkerCount != 2 {
		t.Errorf("event bus settings not applied: %+v", settings)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rca.yaml")
	if err := os.WriteFile(path, []byte("provider: ollama\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("RCA_PROVIDER", "claude")
	t.Setenv("CLAUDE_MODEL", "claude-3-opus")
	t.Setenv("CLAUDE_API_KEY", "secret")
	t.Setenv("RCA_ENABLE_TOOLS", "1")
	t.Setenv("RCA_TEMPERATURE", "0.7")

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Provider.Kind != rca.ProviderAnthropic {
		t.Errorf("claude alias should map to anthropic, got %s", settings.Provider.Kind)
	}
	if settings.Provider.Model != "claude-3-opus" || settings.Provider.APIKey != "secret" {
		t.Errorf("anthropic env not applied: %+v", settings.Provider)
	}
	if !settings.EnableTools {
		t.Error("RCA_ENABLE_TOOLS=1 should enable tools")
	}
	if settings.Provider.Temperature != 0.7 {
		t.Errorf("unexpected temperature: %v", settings.Provider.Temperature)
	}
}

func TestLoad_BadTemperatureFallsBackToZero(t *testing.T) {
	t.Setenv("RCA_TEMPERATURE", "not-a-number")

	settings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Provider.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", settings.Provider.Temperature)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("RCA_PROVIDER", "skynet")

	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid provider")
	}
}

func TestLoad_EmptyProviderDefaultsToFake(t *testing.T) {
	t.Setenv("RCA_PROVIDER", "")

	settings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Provider.Kind != rca.ProviderFake {
		t.Errorf("empty provider should map to fake, got %s", settings.Provider.Kind)
	}
}

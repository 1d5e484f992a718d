// Package config loads runtime settings from an optional YAML file
// overlaid with environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/baidakovil/rca"
	"gopkg.in/yaml.v3"
)

// File mirrors the YAML configuration document.
type File struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Endpoint    string  `yaml:"endpoint"`

	EnableTools   bool `yaml:"enable_tools"`
	MaxToolRounds int  `yaml:"max_tool_rounds"`

	Sandbox struct {
		Interpreter string `yaml:"interpreter"`
		// Timeout is a Go duration string (e.g. "30s")
		Timeout        string `yaml:"timeout"`
		MaxOutputBytes int    `yaml:"max_output_bytes"`
	} `yaml:"sandbox"`

	EventBus struct {
		BufferSize  int `yaml:"buffer_size"`
		WorkerCount int `yaml:"worker_count"`
	} `yaml:"event_bus"`
}

// Settings is the resolved runtime configuration.
type Settings struct {
	Provider rca.ProviderConfig

	EnableTools   bool
	MaxToolRounds int

	SandboxInterpreter    string
	SandboxTimeout        time.Duration
	SandboxMaxOutputBytes int

	EventBusBufferSize  int
	EventBusWorkerCount int
}

// Default returns settings usable with no file and no environment:
// the deterministic provider, tools off, the stock sandbox.
func Default() Settings {
	return Settings{
		Provider:              rca.ProviderConfig{Kind: rca.ProviderFake},
		EnableTools:           false,
		MaxToolRounds:         5,
		SandboxInterpreter:    "python3",
		SandboxTimeout:        30 * time.Second,
		SandboxMaxOutputBytes: 256 << 10,
		EventBusBufferSize:    100,
		EventBusWorkerCount:   5,
	}
}

// Load resolves settings: defaults, then the YAML file when path is
// non-empty, then environment variables on top.
func Load(path string) (Settings, error) {
	settings := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file: %w", err)
		}

		var file File
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := applyFile(&settings, file); err != nil {
			return Settings{}, err
		}
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func applyFile(settings *Settings, file File) error {
	if file.Provider != "" {
		kind, err := rca.ParseProviderKind(file.Provider)
		if err != nil {
			return err
		}
		settings.Provider.Kind = kind
	}
	if file.Model != "" {
		settings.Provider.Model = file.Model
	}
	if file.Temperature != 0 {
		settings.Provider.Temperature = file.Temperature
	}
	if file.Endpoint != "" {
		settings.Provider.Endpoint = file.Endpoint
	}

	settings.EnableTools = file.EnableTools
	if file.MaxToolRounds > 0 {
		settings.MaxToolRounds = file.MaxToolRounds
	}

	if file.Sandbox.Interpreter != "" {
		settings.SandboxInterpreter = file.Sandbox.Interpreter
	}
	if file.Sandbox.Timeout != "" {
		timeout, err := time.ParseDuration(file.Sandbox.Timeout)
		if err != nil {
			return fmt.Errorf("invalid sandbox timeout %q: %w", file.Sandbox.Timeout, err)
		}
		if timeout > 0 {
			settings.SandboxTimeout = timeout
		}
	}
	if file.Sandbox.MaxOutputBytes > 0 {
		settings.SandboxMaxOutputBytes = file.Sandbox.MaxOutputBytes
	}

	if file.EventBus.BufferSize > 0 {
		settings.EventBusBufferSize = file.EventBus.BufferSize
	}
	if file.EventBus.WorkerCount > 0 {
		settings.EventBusWorkerCount = file.EventBus.WorkerCount
	}

	return nil
}

func applyEnv(settings *Settings) error {
	if raw, ok := os.LookupEnv("RCA_PROVIDER"); ok {
		kind, err := rca.ParseProviderKind(raw)
		if err != nil {
			return err
		}
		settings.Provider.Kind = kind
	}

	if raw, ok := os.LookupEnv("RCA_TEMPERATURE"); ok {
		// Unparseable temperature degrades to 0 rather than failing startup
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			value = 0
		}
		settings.Provider.Temperature = value
	}

	if raw, ok := os.LookupEnv("RCA_ENABLE_TOOLS"); ok {
		settings.EnableTools = raw == "1"
	}

	switch settings.Provider.Kind {
	case rca.ProviderOpenAI:
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			settings.Provider.Model = model
		}
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			settings.Provider.APIKey = key
		}
	case rca.ProviderAnthropic:
		if model := os.Getenv("CLAUDE_MODEL"); model != "" {
			settings.Provider.Model = model
		}
		if key := os.Getenv("CLAUDE_API_KEY"); key != "" {
			settings.Provider.APIKey = key
		}
	case rca.ProviderOllama:
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			settings.Provider.Model = model
		}
		if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
			settings.Provider.Endpoint = base
		}
	}

	return nil
}

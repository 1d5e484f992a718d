// Command server wires the rca runtime behind a small JSON HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/anthropic"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"

	"github.com/baidakovil/rca"
	"github.com/baidakovil/rca/internal/config"
	"github.com/baidakovil/rca/internal/provider"
	"github.com/baidakovil/rca/internal/sandbox"
	"github.com/baidakovil/rca/internal/tools"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	g, err := initTransport(ctx, settings)
	if err != nil {
		log.Fatalf("transport initialization failed: %v", err)
	}

	factory := provider.NewFactory(g)

	runner := sandbox.NewRunner(
		sandbox.WithInterpreter(settings.SandboxInterpreter),
		sandbox.WithDefaultTimeout(settings.SandboxTimeout),
		sandbox.WithMaxOutputBytes(settings.SandboxMaxOutputBytes),
	)

	agent, err := rca.New(
		rca.WithConfig(rca.Config{
			Provider:            settings.Provider,
			EnableTools:         settings.EnableTools,
			MaxToolRounds:       settings.MaxToolRounds,
			SystemPrompt:        rca.DefaultConfig().SystemPrompt,
			EnableEventBus:      true,
			EventBusBufferSize:  settings.EventBusBufferSize,
			EventBusWorkerCount: settings.EventBusWorkerCount,
		}),
		rca.WithBackendFactory(factory),
		rca.WithSandbox(runner),
		rca.WithTools(tools.SetupTools()...),
	)
	if err != nil {
		log.Fatalf("agent construction failed: %v", err)
	}
	defer agent.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth(settings))
	mux.HandleFunc("/chat", handleChat(agent))
	mux.HandleFunc("/execute", handleExecute(agent))

	srv := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("listening on %s (provider=%s)", *addr, settings.Provider.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// initTransport initializes the model transport with the plugin for the
// configured provider. The fake kind needs no transport at all.
func initTransport(ctx context.Context, settings config.Settings) (*genkit.Genkit, error) {
	cfg := settings.Provider

	switch cfg.Kind {
	case rca.ProviderFake:
		return nil, nil
	case rca.ProviderOpenAI:
		return genkit.Init(ctx,
			genkit.WithPlugins(&openai.OpenAI{APIKey: cfg.APIKey}),
			genkit.WithDefaultModel(cfg.QualifiedModel()),
		)
	case rca.ProviderAnthropic:
		return genkit.Init(ctx,
			genkit.WithPlugins(&anthropic.Anthropic{
				Opts: []option.RequestOption{option.WithAPIKey(cfg.APIKey)},
			}),
			genkit.WithDefaultModel(cfg.QualifiedModel()),
		)
	case rca.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: ollamaAddress(cfg.Endpoint)}
		g, err := genkit.Init(ctx,
			genkit.WithPlugins(plugin),
			genkit.WithDefaultModel(cfg.QualifiedModel()),
		)
		if err != nil {
			return nil, err
		}
		plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.ModelName(), Type: "chat"}, nil)
		return g, nil
	}

	return nil, rca.NewConfigurationError("unrecognized provider kind", nil)
}

func ollamaAddress(endpoint string) string {
	if endpoint != "" {
		return endpoint
	}
	return "http://127.0.0.1:11434"
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type executeRequest struct {
	Code           string  `json:"code"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func handleHealth(settings config.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"provider": settings.Provider.Kind,
		})
	}
}

func handleChat(agent *rca.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST required"})
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}

		reply, err := agent.Chat(r.Context(), req.SessionID, req.Message)
		if err != nil {
			writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Reply: reply})
	}
}

func handleExecute(agent *rca.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST required"})
			return
		}

		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}

		result, err := agent.Execute(r.Context(), rca.ExecutionRequest{
			Code:    req.Code,
			Timeout: time.Duration(req.TimeoutSeconds * float64(time.Second)),
		})
		if err != nil {
			writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// statusForError maps the runtime's error codes onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case rca.HasCode(err, rca.ErrCodeValidation):
		return http.StatusBadRequest
	case rca.HasCode(err, rca.ErrCodeConfiguration):
		return http.StatusServiceUnavailable
	case rca.HasCode(err, rca.ErrCodeToolNotFound):
		return http.StatusBadGateway
	case rca.HasCode(err, rca.ErrCodeProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("response encoding failed: %v", err)
	}
}

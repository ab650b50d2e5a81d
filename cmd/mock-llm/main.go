// Package main implements an OpenAI-compatible mock model server for
// exercising LocalFlow without a real provider.
//
// Responses come from JSON fixtures chosen by the request's "model" field.
// Built-in fixtures cover mock-planner, mock-replanner and mock-grounding;
// --fixtures loads a directory instead.
//
// Usage:
//
//	mock-llm --fixtures ./fixtures --port 11434 --fail mock-planner
//
// Fixture files are named by model ("mock-planner.json" answers model
// "mock-planner"). Numbered files ("mock-replanner.1.json",
// "mock-replanner.2.json") answer the Nth call in order; after they run out
// the base file repeats. Models listed in --fail answer 503 so circuit
// breakers and fallbacks can be tested.
package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

//go:embed fixtures/*.json
var builtinFixtures embed.FS

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	// ResponseFormat is only recorded; fixtures are returned as-is.
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// capturedRequest is what /requests reports for each call.
type capturedRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Structured bool          `json:"structured"`
	CallIndex  int           `json:"call_index"`
	Timestamp  int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string
	failing  map[string]bool
	logger   *slog.Logger

	calls atomic.Int64

	mu       sync.Mutex
	perModel map[string]int
	requests map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, failing []string, logger *slog.Logger) *server {
	s := &server{
		fixtures: fixtures,
		failing:  make(map[string]bool, len(failing)),
		logger:   logger,
		perModel: make(map[string]int),
		requests: make(map[string][]capturedRequest),
	}
	for _, m := range failing {
		s.failing[m] = true
	}
	return s
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixtureDir string
		port       int
		failing    []string
	)

	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "OpenAI-compatible fixture server for LocalFlow",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_LLM_FIXTURES")
			}
			var (
				fixtures map[string][]string
				err      error
			)
			if fixtureDir != "" {
				fixtures, err = loadFixtures(os.DirFS(fixtureDir))
			} else {
				sub, _ := fs.Sub(builtinFixtures, "fixtures")
				fixtures, err = loadFixtures(sub)
				fixtureDir = "(built-in)"
			}
			if err != nil {
				return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
			}
			for model, seq := range fixtures {
				logger.Info("Fixture loaded", "model", model, "responses", len(seq))
			}

			s := newServer(fixtures, failing, logger)
			addr := fmt.Sprintf(":%d", port)
			logger.Info("Mock LLM server listening", "addr", addr, "fixtures", fixtureDir, "failing", failing)
			srv := &http.Server{Addr: addr, Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second}
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory of fixture files (default: built-in)")
	cmd.Flags().IntVar(&port, "port", 11434, "Port to listen on")
	cmd.Flags().StringSliceVar(&failing, "fail", nil, "Models that answer 503")
	return cmd
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/v1/chat/completions", s.handleChatCompletions)
	r.Get("/v1/models", s.handleModels)
	r.Get("/stats", s.handleStats)
	r.Get("/requests", s.handleRequests)
	r.Post("/reset", s.handleReset)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fixtureFor resolves a model to its fixture sequence, trying the name with
// and without the "mock-" prefix.
func (s *server) fixtureFor(model string) ([]string, bool) {
	if seq, ok := s.fixtures[model]; ok {
		return seq, true
	}
	if seq, ok := s.fixtures[strings.TrimPrefix(model, "mock-")]; ok {
		return seq, true
	}
	seq, ok := s.fixtures["mock-"+model]
	return seq, ok
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	callNum := s.calls.Add(1)

	if s.failing[req.Model] {
		s.logger.Info("Failing call on purpose", "call", callNum, "model", req.Model)
		http.Error(w, `{"error":{"message":"mock overloaded"}}`, http.StatusServiceUnavailable)
		return
	}

	seq, ok := s.fixtureFor(req.Model)
	if !ok {
		s.logger.Warn("No fixture for model", "call", callNum, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	s.mu.Lock()
	idx := s.perModel[req.Model]
	s.perModel[req.Model] = idx + 1
	s.requests[req.Model] = append(s.requests[req.Model], capturedRequest{
		Model:      req.Model,
		Messages:   req.Messages,
		Structured: len(req.ResponseFormat) > 0,
		CallIndex:  idx + 1,
		Timestamp:  time.Now().UnixMilli(),
	})
	s.mu.Unlock()

	content := seq[min(idx, len(seq)-1)]
	s.logger.Info("Serving fixture", "call", callNum, "model", req.Model, "index", idx+1, "of", len(seq))

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	writeJSON(w, http.StatusOK, chatResponse{
		ID:      "mock-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: len(content) / 4,
			TotalTokens:      promptTokens + len(content)/4,
		},
	})
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	models := make([]modelEntry, 0, len(s.fixtures))
	for name := range s.fixtures {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": models})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byModel := make(map[string]int, len(s.perModel))
	for m, n := range s.perModel {
		byModel[m] = n
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": byModel,
	})
}

// handleRequests returns captured requests, optionally filtered by ?model=
// and ?call= (1-indexed).
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.requests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		for _, req := range reqs {
			if callFilter == 0 || req.CallIndex == callFilter {
				result[model] = append(result[model], req)
			}
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"requests_by_model": result})
}

// handleReset rewinds every fixture sequence and forgets captured requests.
func (s *server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.perModel = make(map[string]int)
	s.requests = make(map[string][]capturedRequest)
	s.mu.Unlock()
	s.calls.Store(0)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// numberedFileRe matches files like "mock-replanner.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads *.json from fsys into model -> response sequence.
// Numbered files come first in numeric order, then the base file.
func loadFixtures(fsys fs.FS) (map[string][]string, error) {
	type numbered struct {
		index   int
		content string
	}
	base := make(map[string]string)
	seqs := make(map[string][]numbered)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".json") {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", p)
		}

		if m := numberedFileRe.FindStringSubmatch(name); m != nil {
			index, _ := strconv.Atoi(m[2])
			seqs[m[1]] = append(seqs[m[1]], numbered{index: index, content: string(data)})
			return nil
		}
		base[strings.TrimSuffix(path.Base(name), ".json")] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]string)
	for model, list := range seqs {
		sort.Slice(list, func(i, j int) bool { return list[i].index < list[j].index })
		for _, n := range list {
			fixtures[model] = append(fixtures[model], n.content)
		}
	}
	for model, content := range base {
		fixtures[model] = append(fixtures[model], content)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found")
	}
	return fixtures, nil
}

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"selfrag-orchestrator/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if stream, ok := req["stream"].(bool); !ok || stream {
			t.Fatalf("expected stream=false in request")
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"content": content},
			"done":    true,
		})
	}))
}

func TestJudgeDecideRetrieval_ParsesVerdict(t *testing.T) {
	server := chatServer(t, `{"should_retrieve": true}`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	needed, err := judge.DecideRetrieval(context.Background(), "What is the refund policy?")
	if err != nil {
		t.Fatalf("DecideRetrieval failed: %v", err)
	}
	if !needed {
		t.Fatal("expected should_retrieve=true")
	}
}

func TestJudgeDecideRetrieval_MalformedVerdict(t *testing.T) {
	server := chatServer(t, `not json at all`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	_, err := judge.DecideRetrieval(context.Background(), "q")
	if !errors.Is(err, domain.ErrMalformedVerdict) {
		t.Fatalf("expected ErrMalformedVerdict, got %v", err)
	}
}

func TestJudgeDecideRetrieval_MissingFieldIsMalformed(t *testing.T) {
	server := chatServer(t, `{}`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	_, err := judge.DecideRetrieval(context.Background(), "q")
	if !errors.Is(err, domain.ErrMalformedVerdict) {
		t.Fatalf("expected ErrMalformedVerdict for missing field, got %v", err)
	}
}

func TestJudge_BackendErrorIsJudgmentUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	_, err := judge.DecideRetrieval(context.Background(), "q")
	if !errors.Is(err, domain.ErrJudgmentUnavailable) {
		t.Fatalf("expected ErrJudgmentUnavailable, got %v", err)
	}
}

func TestJudgeCheckSupport_ParsesLevelAndEvidence(t *testing.T) {
	server := chatServer(t, `{"supported":"partially_supported","evidence":["Refunds are accepted within 30 days."]}`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	verdict, err := judge.CheckSupport(context.Background(), "q", "a", "ctx")
	if err != nil {
		t.Fatalf("CheckSupport failed: %v", err)
	}
	if verdict.Level != domain.SupportPartial {
		t.Fatalf("expected partially_supported, got %s", verdict.Level)
	}
	if len(verdict.Evidence) != 1 {
		t.Fatalf("expected 1 evidence quote, got %d", len(verdict.Evidence))
	}
}

func TestJudgeCheckSupport_UnknownLevelIsMalformed(t *testing.T) {
	server := chatServer(t, `{"supported":"kinda_supported","evidence":[]}`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	_, err := judge.CheckSupport(context.Background(), "q", "a", "ctx")
	if !errors.Is(err, domain.ErrMalformedVerdict) {
		t.Fatalf("expected ErrMalformedVerdict, got %v", err)
	}
}

func TestJudgeCheckUsefulness_ParsesVerdict(t *testing.T) {
	server := chatServer(t, `{"useful": false, "reason": "does not address the question"}`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	verdict, err := judge.CheckUsefulness(context.Background(), "q", "a")
	if err != nil {
		t.Fatalf("CheckUsefulness failed: %v", err)
	}
	if verdict.Useful {
		t.Fatal("expected useful=false")
	}
	if verdict.Reason == "" {
		t.Fatal("expected a reason")
	}
}

func TestJudgeRewriteQuery_EmptyQueryIsMalformed(t *testing.T) {
	server := chatServer(t, `{"retrieval_query": "   "}`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	_, err := judge.RewriteQuery(context.Background(), "q", "prev", "ans")
	if !errors.Is(err, domain.ErrMalformedVerdict) {
		t.Fatalf("expected ErrMalformedVerdict, got %v", err)
	}
}

func TestJudgeRewriteQuery_TrimsQuery(t *testing.T) {
	server := chatServer(t, `{"retrieval_query": "  refund policy return window days  "}`)
	defer server.Close()

	judge := NewJudge(NewClient(server.URL, "judge-model", nil, nil, discardLogger()))
	query, err := judge.RewriteQuery(context.Background(), "q", "prev", "ans")
	if err != nil {
		t.Fatalf("RewriteQuery failed: %v", err)
	}
	if query != "refund policy return window days" {
		t.Fatalf("unexpected query: %q", query)
	}
}

func TestGenerator_ReturnsText(t *testing.T) {
	server := chatServer(t, "Refunds are accepted within 30 days.")
	defer server.Close()

	gen := NewGenerator(NewClient(server.URL, "gen-model", nil, nil, discardLogger()))
	text, err := gen.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Refunds are accepted within 30 days." {
		t.Fatalf("unexpected text: %q", text)
	}
	if gen.ModelName() != "gen-model" {
		t.Fatalf("unexpected model name: %q", gen.ModelName())
	}
}

func TestGenerator_EmptyResponseIsUnavailable(t *testing.T) {
	server := chatServer(t, "   ")
	defer server.Close()

	gen := NewGenerator(NewClient(server.URL, "gen-model", nil, nil, discardLogger()))
	_, err := gen.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
}

func TestGenerator_BackendErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gen := NewGenerator(NewClient(server.URL, "gen-model", nil, nil, discardLogger()))
	_, err := gen.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
}

func TestEmbedder_EncodeCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = fmt.Fprintln(w, `{"embeddings":[[0.1,0.2]]}`)
	}))
	defer server.Close()

	emb := NewEmbedder(server.URL, "embed-model", nil, discardLogger())
	if _, err := emb.Encode(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestEmbedder_Encode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, `{"embeddings":[[0.1,0.2],[0.3,0.4]]}`)
	}))
	defer server.Close()

	emb := NewEmbedder(server.URL, "embed-model", nil, discardLogger())
	vectors, err := emb.Encode(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected embeddings: %v", vectors)
	}
}

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/teranos/xalq/ai/openrouter"
	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/errors"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
	text   string
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.text = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     12,
			CandidatesTokenCount: 30,
			TotalTokenCount:      42,
		},
	}
}

func testRequest(model string) Request {
	return Request{
		Prompt: "Analyze this client",
		Config: GenerationConfig{Model: model, Temperature: 0.1, TopP: 0.9, MaxOutputTokens: 8192},
	}
}

func TestGemini_Generate(t *testing.T) {
	models := &fakeModels{resp: textResponse("  [DIAGNOSTICO]ok[/DIAGNOSTICO]  ")}
	backend := newGeminiBackend(models, GeminiConfig{})

	resp, err := backend.Generate(context.Background(), testRequest("gemini-2.5-pro"))
	require.NoError(t, err)

	assert.Equal(t, "[DIAGNOSTICO]ok[/DIAGNOSTICO]", resp.Text)
	assert.Equal(t, "gemini-2.5-pro", resp.Model)
	assert.Equal(t, string(genai.FinishReasonStop), resp.FinishReason)
	assert.Equal(t, 42, resp.Usage.TotalTokens)

	assert.Equal(t, "gemini-2.5-pro", models.model)
	assert.Equal(t, "Analyze this client", models.text)
	require.NotNil(t, models.config.Temperature)
	assert.InDelta(t, 0.1, *models.config.Temperature, 1e-6)
	require.NotNil(t, models.config.TopP)
	assert.InDelta(t, 0.9, *models.config.TopP, 1e-6)
	assert.Equal(t, int32(8192), models.config.MaxOutputTokens)
}

func TestGemini_EmptyResponseIsBlocked(t *testing.T) {
	tests := []struct {
		name   string
		resp   *genai.GenerateContentResponse
		reason string
	}{
		{
			name: "prompt feedback",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			},
			reason: "prompt blocked",
		},
		{
			name: "safety finish",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
			},
			reason: "finish reason",
		},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, reason: "no candidates"},
		{name: "nil response", resp: nil, reason: "nil response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newGeminiBackend(&fakeModels{resp: tt.resp}, GeminiConfig{})
			_, err := backend.Generate(context.Background(), testRequest("gemini-2.5-flash"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBlocked))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestGemini_TransportErrorIsNotBlocked(t *testing.T) {
	backend := newGeminiBackend(&fakeModels{err: errors.New("404 model not found")}, GeminiConfig{})
	_, err := backend.Generate(context.Background(), testRequest("models/nope"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBlocked))
	assert.Contains(t, err.Error(), "models/nope")
}

func TestNewGeminiBackend_RequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), GeminiConfig{})
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestLocal_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var body chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body.Model)
		assert.False(t, body.Stream)
		require.NotNil(t, body.Options)
		assert.Equal(t, 8192, body.Options.NumPredict)

		_, _ = w.Write([]byte(`{"model":"llama3","choices":[{"message":{"role":"assistant","content":"report"},"finish_reason":"stop"}],"usage":{"total_tokens":7}}`))
	}))
	defer server.Close()

	backend := NewLocalBackend(LocalConfig{BaseURL: server.URL + "/"})
	resp, err := backend.Generate(context.Background(), testRequest("llama3"))
	require.NoError(t, err)
	assert.Equal(t, "report", resp.Text)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, ProviderLocal, backend.Name())
}

func TestLocal_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model \"x\" not found", http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewLocalBackend(LocalConfig{BaseURL: server.URL}).Generate(context.Background(), testRequest("x"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrBlocked))
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`))
		}))
		defer server.Close()

		_, err := NewLocalBackend(LocalConfig{BaseURL: server.URL}).Generate(context.Background(), testRequest("x"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBlocked))
	})
}

type fakeChat struct {
	req  openrouter.ChatRequest
	resp *openrouter.ChatResponse
	err  error
}

func (f *fakeChat) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenRouterBackend(t *testing.T) {
	t.Run("maps model and usage", func(t *testing.T) {
		chat := &fakeChat{resp: &openrouter.ChatResponse{
			Content: "text", FinishReason: "stop",
			Usage: openrouter.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		}}
		resp, err := NewOpenRouterBackend(chat, nil).Generate(context.Background(), testRequest("models/gemini-2.5-pro"))
		require.NoError(t, err)
		assert.Equal(t, "google/gemini-2.5-pro", chat.req.Model)
		assert.Equal(t, "models/gemini-2.5-pro", resp.Model)
		assert.Equal(t, 3, resp.Usage.TotalTokens)
	})

	t.Run("empty content becomes blocked", func(t *testing.T) {
		chat := &fakeChat{err: errors.Mark(errors.New("empty content"), openrouter.ErrEmptyContent)}
		_, err := NewOpenRouterBackend(chat, nil).Generate(context.Background(), testRequest("gemini-2.5-pro"))
		assert.True(t, errors.Is(err, ErrBlocked))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		chat := &fakeChat{err: errors.New("status 429")}
		_, err := NewOpenRouterBackend(chat, nil).Generate(context.Background(), testRequest("gemini-2.5-pro"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrBlocked))
	})
}

func TestOpenRouterModel(t *testing.T) {
	assert.Equal(t, "google/gemini-2.5-pro", OpenRouterModel("gemini-2.5-pro"))
	assert.Equal(t, "google/gemini-2.5-pro", OpenRouterModel("models/gemini-2.5-pro"))
	assert.Equal(t, "openai/gpt-4o-mini", OpenRouterModel("openai/gpt-4o-mini"))
	assert.Equal(t, "llama3", OpenRouterModel("llama3"))
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"gemini", ProviderGemini},
		{"Google", ProviderGemini},
		{"openrouter", ProviderOpenRouter},
		{"ollama", ProviderLocal},
		{"", ProviderAuto},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseProvider("anthropic")
	assert.Error(t, err)
}

func TestAvailableAndAuto(t *testing.T) {
	cfg := am.Defaults().With(func(c *am.EngineConfig) {
		c.Backend.Provider = "auto"
		c.Backend.Gemini.APIKey = ""
		c.Backend.OpenRouter.APIKey = "or-key-123456"
		c.Backend.Local.Enabled = true
	})
	assert.Equal(t, []Provider{ProviderOpenRouter, ProviderLocal}, Available(cfg))

	backend, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, backend.Name())

	none := cfg.With(func(c *am.EngineConfig) {
		c.Backend.OpenRouter.APIKey = ""
		c.Backend.Local.Enabled = false
	})
	_, err = New(context.Background(), none)
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "GEMINI_API_KEY")
}

func TestNewWithProvider_Local(t *testing.T) {
	backend, err := NewWithProvider(context.Background(), am.Defaults(), ProviderLocal)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, backend.Name())
}

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeLLM records the last request and returns a canned response.
type fakeLLM struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		provider, model string
		wantProvider    string
		wantModel       string
	}{
		{"", "claude-3-5-sonnet-latest", ProviderAnthropic, "claude-3-5-sonnet-latest"},
		{"", "gpt-4o-mini", ProviderOpenAI, "gpt-4o-mini"},
		{"", "o3-mini", ProviderOpenAI, "o3-mini"},
		{"", "llama3.2", ProviderOllama, "llama3.2"},
		{"", "ollama/gpt-oss", ProviderOllama, "gpt-oss"},
		{"", "bedrock/anthropic.claude-3-haiku-20240307-v1:0", ProviderBedrock, "anthropic.claude-3-haiku-20240307-v1:0"},
		{"", "library/mistral", ProviderOllama, "library/mistral"},
		{"Bedrock", "amazon.titan-text-lite-v1", ProviderBedrock, "amazon.titan-text-lite-v1"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, m := ResolveProvider(tt.provider, tt.model)
			assert.Equal(t, tt.wantProvider, p)
			assert.Equal(t, tt.wantModel, m)
		})
	}
}

func TestNewModel_MissingKeys(t *testing.T) {
	_, err := NewModel(context.Background(), "", "gpt-4o-mini", Credentials{})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = NewModel(context.Background(), "", "claude-3-5-haiku-latest", Credentials{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}

func TestNewModel_Unsupported(t *testing.T) {
	_, err := NewModel(context.Background(), "cohere", "command-r", Credentials{})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestNewModel_Ollama(t *testing.T) {
	m, err := NewModel(context.Background(), "", "llama3.2", Credentials{OllamaHost: "http://127.0.0.1:11434"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, m.Provider())
	assert.Equal(t, "llama3.2", m.Name())
}

func TestGenerate(t *testing.T) {
	fake := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: "first"},
		{Content: "second"},
	}}}
	m := NewModelFromLLM(fake, ProviderOllama, "test")

	out, err := m.Generate(context.Background(), "user: hi", "line1\nline2", map[string]any{"temperature": 0.3})
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	require.Len(t, fake.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, "line1\nline2", textOf(t, fake.messages[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, "user: hi", textOf(t, fake.messages[1]))
	assert.InDelta(t, 0.3, fake.opts.Temperature, 1e-9)
}

func TestGenerate_NoSystemPrompt(t *testing.T) {
	fake := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}
	m := NewModelFromLLM(fake, ProviderOllama, "test")

	_, err := m.Generate(context.Background(), "user: hi", "", nil)
	require.NoError(t, err)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[0].Role)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	m := NewModelFromLLM(&fakeLLM{resp: &llms.ContentResponse{}}, ProviderOllama, "test")

	out, err := m.Generate(context.Background(), "p", "s", nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestGenerate_Error(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewModelFromLLM(&fakeLLM{err: boom}, ProviderOpenAI, "gpt-4o")

	_, err := m.Generate(context.Background(), "p", "s", nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "openai/gpt-4o")
}

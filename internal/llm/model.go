// ABOUTME: langchaingo-backed text generation for agents (OpenAI, Anthropic, Ollama, Bedrock)
// ABOUTME: Resolves the provider from the model id and maps agent options onto call options

package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderBedrock   = "bedrock"
)

// ErrUnsupportedProvider is returned for provider names this package cannot build.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// Credentials holds provider secrets. Bedrock uses the standard AWS chain instead.
type Credentials struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
}

// CredentialsFromEnv reads OPENAI_API_KEY, ANTHROPIC_API_KEY and OLLAMA_HOST.
func CredentialsFromEnv() Credentials {
	return Credentials{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OllamaHost:      os.Getenv("OLLAMA_HOST"),
	}
}

// ResolveProvider picks the provider for model. An explicit provider wins,
// then a "provider/" prefix on the model id, then the model family:
// claude* is Anthropic, gpt*, o1*, o3* and o4* are OpenAI, anything else
// runs on Ollama. The returned model id has any provider prefix removed.
func ResolveProvider(provider, model string) (string, string) {
	if provider != "" {
		return strings.ToLower(provider), model
	}

	if prefix, rest, ok := strings.Cut(model, "/"); ok {
		switch p := strings.ToLower(prefix); p {
		case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderBedrock:
			return p, rest
		}
	}

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return ProviderAnthropic, model
	case strings.HasPrefix(lower, "gpt"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"):
		return ProviderOpenAI, model
	default:
		return ProviderOllama, model
	}
}

// Model wraps a langchaingo model for chat replies.
type Model struct {
	llm       llms.Model
	provider  string
	modelName string
}

// NewModel builds the model for provider and model id, resolving the provider
// as ResolveProvider does.
func NewModel(ctx context.Context, provider, model string, creds Credentials) (*Model, error) {
	provider, model = ResolveProvider(provider, model)

	var (
		l   llms.Model
		err error
	)
	switch provider {
	case ProviderOpenAI:
		if creds.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required (set OPENAI_API_KEY)")
		}
		l, err = openai.New(
			openai.WithToken(creds.OpenAIAPIKey),
			openai.WithModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if creds.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required (set ANTHROPIC_API_KEY)")
		}
		l, err = anthropic.New(
			anthropic.WithToken(creds.AnthropicAPIKey),
			anthropic.WithModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(model)}
		if creds.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(creds.OllamaHost))
		}
		l, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		l, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	return &Model{llm: l, provider: provider, modelName: model}, nil
}

// NewModelFromLLM wraps an existing langchaingo model.
func NewModelFromLLM(l llms.Model, provider, model string) *Model {
	return &Model{llm: l, provider: provider, modelName: model}
}

// Name returns the model id without provider prefix.
func (m *Model) Name() string {
	return m.modelName
}

// Provider returns the resolved provider.
func (m *Model) Provider() string {
	return m.provider
}

// Generate sends system and prompt as one exchange and returns the first
// choice's text. A response without choices yields "".
func (m *Model) Generate(ctx context.Context, prompt, system string, options map[string]any) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := m.llm.GenerateContent(ctx, messages, CallOptions(options)...)
	if err != nil {
		return "", fmt.Errorf("generate with %s/%s: %w", m.provider, m.modelName, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

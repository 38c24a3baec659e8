// Package llm generates agent replies through langchaingo.
//
// NewModel resolves a provider from the agents file entry and builds the
// matching langchaingo client: OpenAI and Anthropic take API keys from
// Credentials, Ollama an optional server URL, and Bedrock the default AWS
// credential chain.
//
// Model.Generate sends the persona as the system message and the flattened
// conversation as one human message. CallOptions maps the agent's options
// (temperature, max_tokens, top_p, top_k, stop, seed, frequency_penalty,
// presence_penalty) to call options and forwards everything else as metadata.
package llm

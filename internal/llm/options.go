// ABOUTME: Maps free-form agent options from the agents file onto langchaingo call options
// ABOUTME: Known sampling keys get typed options; every other key travels as metadata

package llm

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/tmc/langchaingo/llms"
)

// CallOptions converts agent options to call options. Values of the wrong
// type for a known key are passed through as metadata instead of dropped.
func CallOptions(options map[string]any) []llms.CallOption {
	if len(options) == 0 {
		return nil
	}

	var (
		opts  []llms.CallOption
		extra = make(map[string]any)
	)
	for key, raw := range options {
		switch key {
		case "temperature":
			if v, ok := toFloat(raw); ok {
				opts = append(opts, llms.WithTemperature(v))
				continue
			}
		case "top_p":
			if v, ok := toFloat(raw); ok {
				opts = append(opts, llms.WithTopP(v))
				continue
			}
		case "frequency_penalty":
			if v, ok := toFloat(raw); ok {
				opts = append(opts, llms.WithFrequencyPenalty(v))
				continue
			}
		case "presence_penalty":
			if v, ok := toFloat(raw); ok {
				opts = append(opts, llms.WithPresencePenalty(v))
				continue
			}
		case "max_tokens":
			if v, ok := toInt(raw); ok {
				opts = append(opts, llms.WithMaxTokens(v))
				continue
			}
		case "top_k":
			if v, ok := toInt(raw); ok {
				opts = append(opts, llms.WithTopK(v))
				continue
			}
		case "seed":
			if v, ok := toInt(raw); ok {
				opts = append(opts, llms.WithSeed(v))
				continue
			}
		case "stop":
			if v, ok := toStrings(raw); ok {
				opts = append(opts, llms.WithStopWords(v))
				continue
			}
		}
		extra[key] = raw
	}

	if len(extra) > 0 {
		opts = append(opts, llms.WithMetadata(maps.Clone(extra)))
	}
	return opts
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case string:
		return []string{s}, true
	case []string:
		return s, true
	case []any:
		out := make([]string, len(s))
		for i, item := range s {
			out[i] = fmt.Sprint(item)
		}
		return out, true
	default:
		return nil, false
	}
}

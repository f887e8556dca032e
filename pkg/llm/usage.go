package llm

// Usage accumulates token counts across one or more provider calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedTokens int `json:"cached_tokens"`
}

// Add merges another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CachedTokens += other.CachedTokens
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// UsageFromGenerationInfo extracts token counts from a langchaingo
// GenerationInfo map. Providers report prompt/completion totals under
// these keys on the OpenAI-compatible path; cached tokens are only
// present when the provider supports prompt caching.
func UsageFromGenerationInfo(info map[string]any) Usage {
	return Usage{
		InputTokens:  intFromInfo(info, "PromptTokens"),
		OutputTokens: intFromInfo(info, "CompletionTokens"),
		CachedTokens: intFromInfo(info, "CachedTokens"),
	}
}

func intFromInfo(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

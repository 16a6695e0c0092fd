package provider

// FinishReason describes why the model stopped generating.
type FinishReason string

// FinishReason constants for model completion termination.
const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonFiltering FinishReason = "filtering"
)

// CompletionRequest is the input to Provider.Complete. The prompt is sent as
// a single user message.
type CompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// JSONMode asks the provider to constrain output to a JSON object when
	// it supports doing so.
	JSONMode bool `json:"json_mode,omitempty"`

	// APIKey overrides the provider's configured key for this call.
	APIKey string `json:"-"`
}

// CompletionResponse is the output of Provider.Complete.
type CompletionResponse struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
}

// EmbeddingRequest is the input to Provider.Embed.
type EmbeddingRequest struct {
	Model  string   `json:"model"`
	Inputs []string `json:"inputs"`
	APIKey string   `json:"-"`
}

// EmbeddingResponse holds one vector per request input, in input order.
type EmbeddingResponse struct {
	Vectors [][]float64 `json:"vectors"`
	Usage   TokenUsage  `json:"usage"`
}

// TokenUsage tracks token consumption for a call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

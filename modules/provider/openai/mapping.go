package openai

import (
	"cmp"
	"slices"

	"github.com/flemzord/tabllm/internal/provider"
)

// --- OpenAI API request/response types (unexported, serialization only) ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   usage        `json:"usage"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason *string     `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage usage           `json:"usage"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// toChatRequest sends the prompt as a single user message.
func toChatRequest(req provider.CompletionRequest) chatRequest {
	cr := chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		cr.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return cr
}

func fromChatResponse(resp *chatResponse) provider.CompletionResponse {
	out := provider.CompletionResponse{Usage: fromUsage(resp.Usage)}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	if choice.FinishReason != nil {
		out.FinishReason = mapFinishReason(*choice.FinishReason)
	}
	return out
}

// fromEmbeddingResponse orders vectors by index; the API does not promise
// response order.
func fromEmbeddingResponse(resp *embeddingResponse) provider.EmbeddingResponse {
	data := slices.Clone(resp.Data)
	slices.SortFunc(data, func(a, b embeddingData) int { return cmp.Compare(a.Index, b.Index) })
	out := provider.EmbeddingResponse{
		Vectors: make([][]float64, len(data)),
		Usage:   fromUsage(resp.Usage),
	}
	for i, d := range data {
		out.Vectors[i] = d.Embedding
	}
	return out
}

func fromUsage(u usage) provider.TokenUsage {
	return provider.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}

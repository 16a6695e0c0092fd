package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when neither an encoding nor a model is configured.
const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts BPE tokens the way OpenAI models do.
type TiktokenCounter struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktoken loads a named encoding. The BPE ranks are fetched once and
// cached under TIKTOKEN_CACHE_DIR when set.
func NewTiktoken(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: loading encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{name: encoding, enc: enc}, nil
}

// NewTiktokenForModel loads the encoding registered for a model name.
func NewTiktokenForModel(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: loading encoding for model %q: %w", model, err)
	}
	return &TiktokenCounter{name: model, enc: enc}, nil
}

// Name returns the encoding or model the counter was built for.
func (t *TiktokenCounter) Name() string { return t.name }

// CountTokens implements Counter. Special-token text is counted as plain
// text.
func (t *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.EncodeOrdinary(text))
}

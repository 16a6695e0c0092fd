package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Request body limits.
const (
	DefaultMaxBodySize  = 8 << 20
	DefaultMaxJSONDepth = 32
)

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrJSONTooDeep  = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON  = errors.New("invalid JSON")
)

// ReadBody reads at most limit bytes from r (DefaultMaxBodySize when limit
// is not positive) and checks the nesting depth of the JSON document.
func ReadBody(r io.Reader, limit, maxDepth int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > limit {
		return nil, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, limit)
	}
	if err := ValidateJSONDepth(data, maxDepth); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidateJSONDepth rejects documents nested deeper than limit
// (DefaultMaxJSONDepth when limit is not positive).
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: max %d", ErrJSONTooDeep, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}

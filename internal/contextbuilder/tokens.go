package contextbuilder

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter wraps a cached cl100k-family tiktoken encoder, selectable
// per target model, grounded on the same EncodingForModel/GetEncoding
// fallback pattern the pack uses for LLM prompt budgeting.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	encodingMu    sync.Mutex
)

// NewTokenCounter returns a counter for model, falling back to cl100k_base
// when the model has no registered encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encodingMu.Lock()
	defer encodingMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &TokenCounter{encoding: enc, model: model}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("contextbuilder: load encoding: %w", err)
		}
	}
	encodingCache[model] = enc
	return &TokenCounter{encoding: enc, model: model}, nil
}

// Count returns the exact token count for text under this encoding.
func (c *TokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts model-vocabulary tokens for a string. Counting must
// be deterministic and side-effect-free; chunk boundaries depend on it.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens against a fixed subword vocabulary. The
// cl100k_base encoding approximates the downstream embedding and
// generation tokenizers closely enough for chunk-size tuning.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the given encoding, defaulting to cl100k_base.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter estimates ~4 characters per token. It keeps chunking
// functional when the tokenizer vocabulary cannot be loaded (offline
// environments); boundaries are approximate but stable.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	n := len([]rune(text))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

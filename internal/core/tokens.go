package core

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens the way the usage ledger accounts for them.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a fixed BPE encoding. Counting is
// local and deterministic so the persistence transaction never depends
// on a network call.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %s: %w", encodingName, err)
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

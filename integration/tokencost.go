package integration

import (
	"encoding/json"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCostEstimator counts tokens in a tool call's serialized
// arguments using a real BPE tokenizer, for embedders that want quota
// accounting denominated in actual LLM tokens rather than raw bytes
// (the agent package's DefaultToolCost estimator).
type TokenCostEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCostEstimator loads the encoding used by modern
// OpenAI-compatible chat models. If the encoding can't be loaded (e.g.
// no network access to fetch the BPE rank file on first use) it returns
// the error; it does not fall back to another estimator.
func NewTokenCostEstimator() (*TokenCostEstimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TokenCostEstimator{enc: enc}, nil
}

// EstimateTokens returns the token count of input's JSON encoding.
func (e *TokenCostEstimator) EstimateTokens(input any) uint64 {
	b, err := json.Marshal(input)
	if err != nil {
		return 1
	}
	tokens := e.enc.Encode(string(b), nil, nil)
	return uint64(len(tokens))
}

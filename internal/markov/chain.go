package markov

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultOrder is the context length used when none is configured
const DefaultOrder = 2

// ErrInvalidOrder is returned when a chain is constructed with order < 1
var ErrInvalidOrder = errors.New("markov order must be at least 1")

type tokenID uint32

// vocabulary interns tokens into a contiguous table
type vocabulary struct {
	ids    map[string]tokenID
	tokens []string
}

func newVocabulary() *vocabulary {
	return &vocabulary{ids: make(map[string]tokenID)}
}

func (v *vocabulary) intern(token string) tokenID {
	if id, ok := v.ids[token]; ok {
		return id
	}
	id := tokenID(len(v.tokens))
	v.ids[token] = id
	v.tokens = append(v.tokens, token)
	return id
}

func (v *vocabulary) lookup(token string) (tokenID, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// contextKey is a fixed-length array of token ids packed into a comparable value
type contextKey string

type transition struct {
	total int
	next  map[tokenID]int
}

// Chain is an order-k Markov chain over tokens. It only stores raw counts;
// probabilities are derived when queried.
type Chain struct {
	order       int
	vocab       *vocabulary
	transitions map[contextKey]*transition
}

// NewChain creates an empty chain of the given order
func NewChain(order int) (*Chain, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}
	return &Chain{
		order:       order,
		vocab:       newVocabulary(),
		transitions: make(map[contextKey]*transition),
	}, nil
}

// Order returns the context length
func (c *Chain) Order() int {
	return c.order
}

// Train counts every (context, next token) window in tokens.
// Sequences shorter than order+1 contribute nothing.
func (c *Chain) Train(tokens []string) {
	if len(tokens) < c.order+1 {
		return
	}

	ids := make([]tokenID, len(tokens))
	for i, tok := range tokens {
		ids[i] = c.vocab.intern(tok)
	}

	for i := 0; i+c.order < len(ids); i++ {
		key := packKey(ids[i : i+c.order])
		t, ok := c.transitions[key]
		if !ok {
			t = &transition{next: make(map[tokenID]int)}
			c.transitions[key] = t
		}
		t.next[ids[i+c.order]]++
		t.total++
	}
}

// TotalCount returns how often context was followed by any token
func (c *Chain) TotalCount(context []string) int {
	t, ok := c.find(context)
	if !ok {
		return 0
	}
	return t.total
}

// NextTokenCount returns how often token followed context
func (c *Chain) NextTokenCount(context []string, token string) int {
	t, ok := c.find(context)
	if !ok {
		return 0
	}
	id, ok := c.vocab.lookup(token)
	if !ok {
		return 0
	}
	return t.next[id]
}

// HasContext reports whether context was observed during training
func (c *Chain) HasContext(context []string) bool {
	_, ok := c.find(context)
	return ok
}

// Probability returns P(token | context), or 0 if the pair was never observed
func (c *Chain) Probability(context []string, token string) float64 {
	t, ok := c.find(context)
	if !ok {
		return 0
	}
	id, ok := c.vocab.lookup(token)
	if !ok {
		return 0
	}
	return float64(t.next[id]) / float64(t.total)
}

// Contexts returns the number of distinct contexts observed
func (c *Chain) Contexts() int {
	return len(c.transitions)
}

// Each calls fn for every observed (context, next token) pair. Iteration order is unspecified.
func (c *Chain) Each(fn func(context []string, next string, count int)) {
	for key, t := range c.transitions {
		context := c.unpackKey(key)
		for id, count := range t.next {
			fn(context, c.vocab.tokens[id], count)
		}
	}
}

// find never inserts: an unknown token means the context cannot have been seen.
func (c *Chain) find(context []string) (*transition, bool) {
	if len(context) != c.order {
		return nil, false
	}
	ids := make([]tokenID, len(context))
	for i, tok := range context {
		id, ok := c.vocab.lookup(tok)
		if !ok {
			return nil, false
		}
		ids[i] = id
	}
	t, ok := c.transitions[packKey(ids)]
	return t, ok
}

func packKey(ids []tokenID) contextKey {
	buf := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(id))
	}
	return contextKey(buf)
}

func (c *Chain) unpackKey(key contextKey) []string {
	context := make([]string, len(key)/4)
	for i := range context {
		id := tokenID(binary.LittleEndian.Uint32([]byte(key[4*i : 4*i+4])))
		context[i] = c.vocab.tokens[id]
	}
	return context
}

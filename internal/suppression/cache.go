// Package suppression keeps per-sender message history and decides whether a
// new message repeats something the sender already said.
package suppression

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/embedding"
	"github.com/edgard/keywatch/internal/keylock"
)

// Embedder computes an embedding vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reason explains why a message was rejected.
type Reason string

// Rejection reasons, in evaluation order.
const (
	ReasonExact    Reason = "exact_duplicate"
	ReasonCooldown Reason = "cooldown"
	ReasonSemantic Reason = "semantic_duplicate"
)

// Decision is the result of Admit.
type Decision struct {
	Admitted bool
	Reason   Reason
	// Similarity is the highest similarity found by the semantic check.
	Similarity float64
	// Embedding of the new text when it was computed; pass it to Record.
	Embedding []float32
}

// Entry is one admitted message of a sender.
type Entry struct {
	Text      string
	At        time.Time
	Embedding []float32
}

// Stats summarizes the cache contents.
type Stats struct {
	Senders int `json:"senders"`
	Entries int `json:"entries"`
}

// Cache holds every sender's admitted messages since the last Reset.
//
// Admit and Record are safe for concurrent use, but a caller that wants the
// decision and the update to be atomic for a sender must hold Lock(sender)
// across both.
type Cache struct {
	mu      sync.RWMutex
	history map[int64][]Entry

	locks     *keylock.Map[int64]
	embedder  Embedder
	cooldown  time.Duration
	semantic  bool
	threshold float64
	log       *slog.Logger
}

// New creates an empty cache. The semantic check runs only when it is
// enabled in cfg and embedder is not nil.
func New(cfg config.SuppressionConfig, embedder Embedder, log *slog.Logger) *Cache {
	return &Cache{
		history:   make(map[int64][]Entry),
		locks:     keylock.New[int64](),
		embedder:  embedder,
		cooldown:  cfg.Cooldown(),
		semantic:  cfg.SemanticFilter && embedder != nil,
		threshold: cfg.SimilarityThreshold,
		log:       log.With("component", "suppression"),
	}
}

// Lock serializes processing of one sender. Call the returned function to release.
func (c *Cache) Lock(sender int64) (unlock func()) {
	return c.locks.Lock(sender)
}

// Admit decides whether normalized text from sender, arriving at now, is new.
// Checks run cheapest first and the first rejection wins: exact duplicate of
// any earlier entry, any entry inside the cooldown window, then semantic
// similarity above the threshold. A failed embedding never rejects.
func (c *Cache) Admit(ctx context.Context, sender int64, normalized string, now time.Time) Decision {
	entries := c.entries(sender)

	for _, e := range entries {
		if e.Text == normalized {
			return Decision{Reason: ReasonExact}
		}
	}

	for _, e := range entries {
		if now.Sub(e.At) < c.cooldown {
			return Decision{Reason: ReasonCooldown}
		}
	}

	if !c.semantic {
		return Decision{Admitted: true}
	}

	vec, err := c.embedder.Embed(ctx, normalized)
	if err != nil {
		c.log.WarnContext(ctx, "Embedding failed, skipping semantic check", "sender_id", sender, "error", err)
		return Decision{Admitted: true}
	}

	var best float64
	for _, e := range entries {
		if e.Embedding == nil {
			continue
		}
		sim := embedding.CosineSimilarity(vec, e.Embedding)
		if sim > best {
			best = sim
		}
		if sim > c.threshold {
			return Decision{Reason: ReasonSemantic, Similarity: sim}
		}
	}

	return Decision{Admitted: true, Similarity: best, Embedding: vec}
}

// Record appends an admitted message to the sender's history.
func (c *Cache) Record(sender int64, normalized string, now time.Time, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[sender] = append(c.history[sender], Entry{Text: normalized, At: now, Embedding: vec})
}

// Reset drops every sender's history.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = make(map[int64][]Entry)
}

// Stats returns the current sender and entry counts.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Senders: len(c.history)}
	for _, entries := range c.history {
		s.Entries += len(entries)
	}
	return s
}

// entries returns the sender's history. Entries are never modified after
// Record, so the returned slice can be read without the lock.
func (c *Cache) entries(sender int64) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history[sender]
}

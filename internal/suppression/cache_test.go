package suppression_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/suppression"
)

var (
	base       = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))
)

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

// unit returns a 2D unit vector whose cosine with (1, 0) is sim.
func unit(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func newCache(semantic bool, emb suppression.Embedder) *suppression.Cache {
	return suppression.New(config.SuppressionConfig{
		CooldownMinutes:     5,
		SemanticFilter:      semantic,
		SimilarityThreshold: 0.9,
	}, emb, discardLog)
}

func admitAndRecord(t *testing.T, c *suppression.Cache, sender int64, text string, at time.Time) suppression.Decision {
	t.Helper()
	d := c.Admit(context.Background(), sender, text, at)
	if d.Admitted {
		c.Record(sender, text, at, d.Embedding)
	}
	return d
}

func TestAdmit_ExactDuplicateHasNoTimeBound(t *testing.T) {
	t.Parallel()

	c := newCache(false, nil)
	if d := admitAndRecord(t, c, 1, "ищу водителя", base); !d.Admitted {
		t.Fatalf("first message rejected: %s", d.Reason)
	}

	d := c.Admit(context.Background(), 1, "ищу водителя", base.Add(30*24*time.Hour))
	if d.Admitted || d.Reason != suppression.ReasonExact {
		t.Errorf("Admit() = %+v, want rejection %q", d, suppression.ReasonExact)
	}
}

func TestAdmit_Cooldown(t *testing.T) {
	t.Parallel()

	c := newCache(false, nil)
	admitAndRecord(t, c, 1, "первое сообщение", base)

	d := c.Admit(context.Background(), 1, "совсем другой текст", base.Add(4*time.Minute))
	if d.Admitted || d.Reason != suppression.ReasonCooldown {
		t.Errorf("Admit() at 4m = %+v, want rejection %q", d, suppression.ReasonCooldown)
	}

	d = c.Admit(context.Background(), 1, "совсем другой текст", base.Add(6*time.Minute))
	if !d.Admitted {
		t.Errorf("Admit() at 6m = %+v, want admitted", d)
	}
}

func TestAdmit_ExactCheckedBeforeCooldown(t *testing.T) {
	t.Parallel()

	c := newCache(false, nil)
	admitAndRecord(t, c, 1, "ищу водителя", base)

	d := c.Admit(context.Background(), 1, "ищу водителя", base.Add(time.Minute))
	if d.Reason != suppression.ReasonExact {
		t.Errorf("Reason = %q, want %q", d.Reason, suppression.ReasonExact)
	}
}

func TestAdmit_SendersIndependent(t *testing.T) {
	t.Parallel()

	c := newCache(false, nil)
	admitAndRecord(t, c, 42, "ищу водителя на завтра", base)

	if d := c.Admit(context.Background(), 99, "ищу водителя на завтра", base.Add(time.Second)); !d.Admitted {
		t.Errorf("Admit() for another sender = %+v, want admitted", d)
	}
}

func TestAdmit_Semantic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sim      float64
		admitted bool
	}{
		{name: "Similar", sim: 0.95, admitted: false},
		{name: "Dissimilar", sim: 0.5, admitted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			emb := &fakeEmbedder{vectors: map[string][]float32{
				"ищу водителя":        {1, 0},
				"нужен шофер на утро": unit(tt.sim),
			}}
			c := newCache(true, emb)
			admitAndRecord(t, c, 1, "ищу водителя", base)

			d := c.Admit(context.Background(), 1, "нужен шофер на утро", base.Add(10*time.Minute))
			if d.Admitted != tt.admitted {
				t.Errorf("Admit() = %+v, want admitted=%v", d, tt.admitted)
			}
			if !tt.admitted && d.Reason != suppression.ReasonSemantic {
				t.Errorf("Reason = %q, want %q", d.Reason, suppression.ReasonSemantic)
			}
			if tt.admitted && len(d.Embedding) == 0 {
				t.Error("admitted decision carries no embedding")
			}
		})
	}
}

func TestAdmit_SemanticSkippedWhenCheaperCheckRejects(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float32{"a": {1, 0}}}
	c := newCache(true, emb)
	admitAndRecord(t, c, 1, "a", base)
	calls := emb.calls

	c.Admit(context.Background(), 1, "a", base.Add(time.Hour))
	c.Admit(context.Background(), 1, "b", base.Add(time.Minute))

	if emb.calls != calls {
		t.Errorf("Embed called %d times for rejected messages, want 0", emb.calls-calls)
	}
}

func TestAdmit_EmbeddingFailureFailsOpen(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: errors.New("quota exceeded")}
	c := newCache(true, emb)

	d := c.Admit(context.Background(), 1, "ищу водителя", base)
	if !d.Admitted {
		t.Errorf("Admit() = %+v, want admitted on embedding failure", d)
	}
	if d.Embedding != nil {
		t.Errorf("Embedding = %v, want nil", d.Embedding)
	}
}

func TestAdmit_SemanticDisabledNeverEmbeds(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	c := newCache(false, emb)
	admitAndRecord(t, c, 1, "a", base)

	if emb.calls != 0 {
		t.Errorf("Embed calls = %d, want 0", emb.calls)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	c := newCache(false, nil)
	admitAndRecord(t, c, 1, "ищу водителя", base)
	admitAndRecord(t, c, 2, "ищу водителя", base)

	if got := c.Stats(); got.Senders != 2 || got.Entries != 2 {
		t.Errorf("Stats() = %+v, want 2 senders and 2 entries", got)
	}

	c.Reset()

	if got := c.Stats(); got.Senders != 0 || got.Entries != 0 {
		t.Errorf("Stats() after Reset = %+v, want empty", got)
	}
	if d := c.Admit(context.Background(), 1, "ищу водителя", base.Add(time.Minute)); !d.Admitted {
		t.Errorf("Admit() after Reset = %+v, want admitted", d)
	}
}

func TestLock_SingleAdmissionUnderConcurrency(t *testing.T) {
	t.Parallel()

	c := newCache(false, nil)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := c.Lock(1)
			defer unlock()

			text := string(rune('a' + i))
			d := c.Admit(context.Background(), 1, text, base)
			if d.Admitted {
				c.Record(1, text, base, nil)
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d concurrent messages, want 1", admitted)
	}
}

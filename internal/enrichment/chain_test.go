package enrichment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	name   string
	output string
	err    error
	block  bool
	calls  atomic.Int32
}

func (m *scriptedModel) Name() string { return m.name }

func (m *scriptedModel) Generate(ctx context.Context, instruction, _ string) (string, error) {
	m.calls.Add(1)
	if instruction == "" {
		return "", errors.New("instruction missing")
	}
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.output, m.err
}

const validReflection = `{"reflection":"The pressure showed up again, and you paused.","themes":["pressure","care"],"follow_up_question":"What made the pause possible?"}`

func newTestChain(models []Model, metrics *Metrics) (*Chain, *[]time.Duration) {
	chain := NewChain(models, ChainOptions{Backoff: time.Second, AttemptTimeout: time.Second, Metrics: metrics})
	slept := &[]time.Duration{}
	chain.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return chain, slept
}

func TestChainReturnsThirdModelAfterTwoUnparseable(t *testing.T) {
	first := &scriptedModel{name: "a", output: "I think you are doing great!"}
	second := &scriptedModel{name: "b", output: "```json\n{\"reflection\": \"cut off"}
	third := &scriptedModel{name: "c", output: "```json\n" + validReflection + "\n```"}

	chain, slept := newTestChain([]Model{first, second, third}, nil)
	got := chain.Reflect(context.Background(), "entry")

	assert.Equal(t, "The pressure showed up again, and you paused.", got.Reflection)
	assert.Equal(t, []string{"pressure", "care"}, got.Themes)
	assert.Equal(t, "What made the pause possible?", got.FollowUpQuestion)
	assert.NotEqual(t, FallbackReflection(), got)
	assert.Empty(t, *slept, "parse failures advance without backoff")
	for _, m := range []*scriptedModel{first, second, third} {
		assert.EqualValues(t, 1, m.calls.Load(), m.name)
	}
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &scriptedModel{name: "a", output: validReflection}
	second := &scriptedModel{name: "b", output: validReflection}

	chain, _ := newTestChain([]Model{first, second}, nil)
	got := chain.Reflect(context.Background(), "entry")

	assert.Equal(t, []string{"pressure", "care"}, got.Themes)
	assert.EqualValues(t, 1, first.calls.Load())
	assert.Zero(t, second.calls.Load())
}

func TestChainKeepsPartialOutputFromFirstModel(t *testing.T) {
	first := &scriptedModel{name: "a", output: `{"themes":["hope"],"follow_up_question":"What next?"}`}
	second := &scriptedModel{name: "b", output: validReflection}

	chain, slept := newTestChain([]Model{first, second}, nil)
	got := chain.Reflect(context.Background(), "entry")

	assert.Equal(t, fallbackReflectionText, got.Reflection)
	assert.Equal(t, []string{"hope"}, got.Themes)
	assert.Equal(t, "What next?", got.FollowUpQuestion)
	assert.EqualValues(t, 1, first.calls.Load())
	assert.Zero(t, second.calls.Load())
	assert.Empty(t, *slept)
}

func TestChainExhaustionReturnsFallback(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	require.NoError(t, err)

	models := []Model{
		&scriptedModel{name: "a", err: errors.New("quota exceeded")},
		&scriptedModel{name: "b", output: "not json"},
		&scriptedModel{name: "c", err: errors.New("unauthorized")},
	}
	chain, slept := newTestChain(models, metrics)
	got := chain.Reflect(context.Background(), "entry")

	assert.Equal(t, FallbackReflection(), got)
	assert.NotEmpty(t, got.Reflection)
	assert.NotEmpty(t, got.Themes)
	assert.Equal(t, []time.Duration{time.Second}, *slept, "no pause after the final candidate")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReflectionAttempts.WithLabelValues("a", "provider_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReflectionAttempts.WithLabelValues("b", "parse_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Fallbacks.WithLabelValues("reflection")))
}

func TestChainBacksOffBetweenProviderErrors(t *testing.T) {
	models := []Model{
		&scriptedModel{name: "a", err: errors.New("503")},
		&scriptedModel{name: "b", err: errors.New("503")},
		&scriptedModel{name: "c", output: validReflection},
	}
	chain, slept := newTestChain(models, nil)
	got := chain.Reflect(context.Background(), "entry")

	assert.Equal(t, "What made the pause possible?", got.FollowUpQuestion)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
}

func TestChainAppliesPerAttemptTimeout(t *testing.T) {
	slow := &scriptedModel{name: "slow", block: true}
	fast := &scriptedModel{name: "fast", output: validReflection}

	chain := NewChain([]Model{slow, fast}, ChainOptions{AttemptTimeout: 20 * time.Millisecond})
	started := time.Now()
	got := chain.Reflect(context.Background(), "entry")

	assert.Equal(t, []string{"pressure", "care"}, got.Themes)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.EqualValues(t, 1, fast.calls.Load())
}

func TestChainEmptyOrCancelled(t *testing.T) {
	chain, _ := newTestChain(nil, nil)
	assert.Equal(t, FallbackReflection(), chain.Reflect(context.Background(), "entry"))

	model := &scriptedModel{name: "a", output: validReflection}
	chain, _ = newTestChain([]Model{model}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, FallbackReflection(), chain.Reflect(ctx, "entry"))
	assert.Zero(t, model.calls.Load())
}

func TestChainStopsWhenBackoffInterrupted(t *testing.T) {
	first := &scriptedModel{name: "a", err: errors.New("down")}
	second := &scriptedModel{name: "b", output: validReflection}

	chain := NewChain([]Model{first, second}, ChainOptions{Backoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Equal(t, FallbackReflection(), chain.Reflect(ctx, "entry"))
	assert.Zero(t, second.calls.Load())
}

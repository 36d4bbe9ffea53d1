package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/batch"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

func TestExecuteBatch_IsolatesFailures(t *testing.T) {
	src := &fakeSource{results: someCandidates(), failOn: 0.9}
	o, _ := newTestOptimizer(t, src, Config{})

	qs := []query.VectorQuery{vq(0.1), vq(0.9), vq(0.2)}
	items, m, fired := o.ExecuteBatch(context.Background(), qs)

	require.Len(t, items, 3)
	for i, it := range items {
		assert.Equal(t, i, it.Index())
	}
	assert.Equal(t, batch.StatusOK, items[0].Status())
	assert.Equal(t, batch.StatusError, items[1].Status())
	assert.ErrorIs(t, items[1].Err(), domain.ErrIndexUnavailable)
	assert.Equal(t, batch.StatusOK, items[2].Status())
	assert.Len(t, items[2].Value().Candidates, 2)

	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 2, m.Succeeded)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, 1, m.Groups)
	assert.Equal(t, 2, fired)
}

func TestExecuteBatch_GroupsByTopKAndThreshold(t *testing.T) {
	src := &fakeSource{results: someCandidates()}
	o, _ := newTestOptimizer(t, src, Config{})

	a := vq(0.1)
	b := vq(0.2)
	b.TopK = 20
	c := vq(0.3)
	c.Threshold = 0.7
	d := vq(0.4)

	_, m, _ := o.ExecuteBatch(context.Background(), []query.VectorQuery{a, b, c, d})
	assert.Equal(t, 3, m.Groups)
	assert.Equal(t, 4, src.callCount())
}

func TestExecuteBatch_MatchesSingleExecution(t *testing.T) {
	src := &fakeSource{results: someCandidates()}
	o, _ := newTestOptimizer(t, src, Config{})
	ctx := context.Background()

	single, err := o.Execute(ctx, vq(0.1))
	require.NoError(t, err)

	items, _, _ := o.ExecuteBatch(ctx, []query.VectorQuery{vq(0.1)})
	require.Len(t, items, 1)
	assert.Equal(t, single.Candidates, items[0].Value().Candidates)
	assert.Equal(t, single.Key, items[0].Value().Key)
}

func TestExecuteBatch_Empty(t *testing.T) {
	o, _ := newTestOptimizer(t, &fakeSource{}, Config{})
	items, m, fired := o.ExecuteBatch(context.Background(), nil)
	assert.Empty(t, items)
	assert.Zero(t, m.Total)
	assert.Zero(t, fired)
}

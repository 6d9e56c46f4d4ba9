package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

func TestManager(t *testing.T) {
	fetcher := &fakeFetcher{records: map[models.ProductKind][]models.Record{
		models.ProductWaterLevel: {{Time: now, Values: map[string]float64{models.ValueKey: 1}}},
	}}

	first := testEntry(models.ProductWaterLevel)
	second := testEntry(models.ProductWaterLevel)
	second.ID = "entry-2"
	second.Identifier = "8454000"
	second.Capabilities.Identifier = "8454000"

	m := NewManager()
	require.NoError(t, m.Add(newTestCollector(t, first, fetcher)))
	assert.Error(t, m.Add(newTestCollector(t, first, fetcher)), "duplicate entry ID")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	late := newTestCollector(t, second, fetcher)
	require.NoError(t, m.Add(late))
	require.Eventually(t, func() bool {
		return !late.LastRefresh().IsZero()
	}, time.Second, 5*time.Millisecond, "collectors added after start run")

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "8454000", list[0].Entry().Identifier)
	assert.Equal(t, "9414290", list[1].Entry().Identifier)

	got, ok := m.Get("entry-1")
	require.True(t, ok)
	assert.Equal(t, "9414290", got.Entry().Identifier)

	assert.True(t, m.Remove("entry-2"))
	assert.False(t, m.Remove("entry-2"))
	_, ok = m.Get("entry-2")
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstOccurrencesIgnoresInsertionOrder(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)
	t3 := t1.Add(20 * time.Minute)

	// Recorded out of stage order: signup arrives before view.
	events := []FunnelEvent{
		{EventID: "e2", SessionID: "s1", Stage: StageSignup, OccurredAt: t2},
		{EventID: "e1", SessionID: "s1", Stage: StageView, OccurredAt: t1},
		{EventID: "e3", SessionID: "s1", Stage: StageFirstCard, OccurredAt: t3},
	}

	first := FirstOccurrences(events)
	require.Len(t, first, 3)

	ordered := ProgressionOrder(first)
	require.Len(t, ordered, 3)
	assert.Equal(t, StageView, ordered[0].Stage)
	assert.Equal(t, StageSignup, ordered[1].Stage)
	assert.Equal(t, StageFirstCard, ordered[2].Stage)
}

func TestFirstOccurrencesKeepsEarliestDuplicate(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	events := []FunnelEvent{
		{EventID: "later", Stage: StageView, OccurredAt: t1.Add(time.Hour)},
		{EventID: "earliest", Stage: StageView, OccurredAt: t1},
		{EventID: "middle", Stage: StageView, OccurredAt: t1.Add(time.Minute)},
	}

	first := FirstOccurrences(events)
	require.Len(t, first, 1)
	assert.Equal(t, "earliest", first[StageView].EventID)
}

func TestFirstOccurrencesEmpty(t *testing.T) {
	assert.Empty(t, FirstOccurrences(nil))
	assert.Empty(t, ProgressionOrder(nil))
}

func TestValidStage(t *testing.T) {
	assert.True(t, ValidStage(StageLanding))
	assert.True(t, ValidStage(StageUpgrade))
	assert.False(t, ValidStage(Stage("checkout")))
	assert.False(t, ValidStage(Stage("")))
}

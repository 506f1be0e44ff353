package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/telemetry/events"
)

type fakeSource struct{ kits []models.Kit }

func (f fakeSource) Kits() []models.Kit { return f.kits }

func TestThresholdsClassify(t *testing.T) {
	th := Thresholds{Online: time.Minute, Stale: 5 * time.Minute}
	now := time.Now()
	assert.Equal(t, StatusOnline, th.Classify(now.Add(-30*time.Second), now))
	assert.Equal(t, StatusStale, th.Classify(now.Add(-2*time.Minute), now))
	assert.Equal(t, StatusOffline, th.Classify(now.Add(-10*time.Minute), now))
	assert.Equal(t, StatusUnknown, th.Classify(time.Time{}, now))
}

func TestSupervisorEvaluateOverallRollup(t *testing.T) {
	now := time.Now()
	src := fakeSource{kits: []models.Kit{
		{ID: "a", LastSeen: now},
		{ID: "b", LastSeen: now.Add(-20 * time.Minute)},
	}}
	sup := NewSupervisor(src, Thresholds{Online: time.Minute, Stale: 5 * time.Minute}, time.Millisecond, nil)
	snap := sup.Evaluate(context.Background())
	require.Len(t, snap.Kits, 2)
	assert.Equal(t, StatusOffline, snap.Overall)
}

func TestSupervisorPublishesTransitionOnce(t *testing.T) {
	now := time.Now()
	src := fakeSource{kits: []models.Kit{{ID: "a", LastSeen: now}}}
	bus := events.NewBus(nil)
	sub, err := bus.Subscribe(4)
	require.NoError(t, err)

	sup := NewSupervisor(src, Thresholds{Online: time.Minute, Stale: 5 * time.Minute}, 0, bus)
	sup.Evaluate(context.Background()) // first evaluation: no prior state, no transition
	sup.ForceInvalidate()

	src.kits[0].LastSeen = now.Add(-time.Hour)
	sup.Evaluate(context.Background())

	select {
	case ev := <-sub.C():
		assert.Equal(t, events.TypeHealthTransition, ev.Type)
		assert.Equal(t, "a", ev.KitID)
	default:
		t.Fatal("expected a transition event")
	}
}

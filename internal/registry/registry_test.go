package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/telemetry/events"
)

func writeKitFile(t *testing.T, dir string, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "kits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestNewLoadsKitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeKitFile(t, dir, "kits:\n  - id: k1\n    name: Kit One\n    lat: 1.5\n    lon: 2.5\n")
	r, err := New(path, nil, nil)
	require.NoError(t, err)
	k, ok := r.Get("k1")
	require.True(t, ok)
	require.Equal(t, "Kit One", k.Name)
	require.Equal(t, 1.5, k.Lat)
}

func TestMissingKitFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	r, err := New(filepath.Join(dir, "absent.yaml"), nil, nil)
	require.NoError(t, err)
	require.Empty(t, r.Kits())
}

func TestAutoRegisterPublishesOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeKitFile(t, dir, "kits: []\n")
	bus := events.NewBus(nil)
	sub, err := bus.Subscribe(4)
	require.NoError(t, err)
	r, err := New(path, bus, nil)
	require.NoError(t, err)

	now := time.Now()
	r.AutoRegister(context.Background(), "auto1", models.SourceMQTT, now)
	k, ok := r.Get("auto1")
	require.True(t, ok)
	require.True(t, k.AutoRegistered)
	require.Equal(t, models.SourceMQTT, k.Source)

	select {
	case ev := <-sub.C():
		require.Equal(t, events.TypeAutoRegistered, ev.Type)
	default:
		t.Fatal("expected auto-registration event")
	}

	// second observation merges source instead of re-registering
	r.AutoRegister(context.Background(), "auto1", models.SourceHTTP, now.Add(time.Minute))
	k, _ = r.Get("auto1")
	require.Equal(t, models.SourceBoth, k.Source)
	select {
	case <-sub.C():
		t.Fatal("did not expect a second auto-registration event")
	default:
	}
}

func TestUpsertMergesSourceAndPreservesCreatedAt(t *testing.T) {
	dir := t.TempDir()
	path := writeKitFile(t, dir, "kits: []\n")
	r, err := New(path, nil, nil)
	require.NoError(t, err)

	r.AutoRegister(context.Background(), "k2", models.SourceHTTP, time.Now())
	before, _ := r.Get("k2")

	updated := r.Upsert(context.Background(), models.Kit{ID: "k2", Name: "Renamed", Source: models.SourceMQTT})
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, models.SourceBoth, updated.Source)
	require.Equal(t, before.CreatedAt, updated.CreatedAt)
}

func TestSetDisabledTogglesFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeKitFile(t, dir, "kits:\n  - id: k3\n    name: Three\n")
	r, err := New(path, nil, nil)
	require.NoError(t, err)

	k, ok := r.SetDisabled(context.Background(), "k3", true)
	require.True(t, ok)
	require.True(t, k.DisabledByAdmin)

	_, ok = r.SetDisabled(context.Background(), "missing", true)
	require.False(t, ok)
}

func TestDeleteRemovesKit(t *testing.T) {
	dir := t.TempDir()
	path := writeKitFile(t, dir, "kits:\n  - id: k4\n    name: Four\n")
	r, err := New(path, nil, nil)
	require.NoError(t, err)
	r.Delete("k4")
	_, ok := r.Get("k4")
	require.False(t, ok)
}

func TestReloadPreservesRuntimeState(t *testing.T) {
	dir := t.TempDir()
	path := writeKitFile(t, dir, "kits:\n  - id: k5\n    name: Five\n    lat: 1\n    lon: 1\n")
	r, err := New(path, nil, nil)
	require.NoError(t, err)
	r.Touch("k5", models.SourceHTTP, time.Now())
	before, _ := r.Get("k5")
	require.False(t, before.LastSeen.IsZero())

	writeKitFile(t, dir, "kits:\n  - id: k5\n    name: Five Renamed\n    lat: 2\n    lon: 2\n")
	require.NoError(t, r.reloadFromFile())

	after, _ := r.Get("k5")
	require.Equal(t, "Five Renamed", after.Name)
	require.Equal(t, 2.0, after.Lat)
	require.Equal(t, before.LastSeen, after.LastSeen)
}

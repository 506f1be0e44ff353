package httpcollector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwatch/aegis/internal/test/httpmock"
)

func TestClientFetchDronesParsesBody(t *testing.T) {
	srv := httpmock.NewServer([]httpmock.RouteSpec{
		{Pattern: "/drones", Status: 200, Body: `[{"drone_id":"d1","lat":1.5,"lon":2.5,"observed_at":"2026-01-01T00:00:00Z"}]`},
	})
	defer srv.Close()

	c := NewClient(2 * time.Second)
	out, err := c.FetchDrones(context.Background(), srv.URL())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "d1", out[0].DroneID)
	assert.Equal(t, 1.5, out[0].Lat)
}

func TestClientFetchSignalsNon200IsError(t *testing.T) {
	srv := httpmock.NewServer([]httpmock.RouteSpec{
		{Pattern: "/signals", Status: 500, Body: "boom"},
	})
	defer srv.Close()

	c := NewClient(2 * time.Second)
	_, err := c.FetchSignals(context.Background(), srv.URL())
	assert.Error(t, err)
}

func TestClientFetchStatusParsesBody(t *testing.T) {
	srv := httpmock.NewServer([]httpmock.RouteSpec{
		{Pattern: "/status", Status: 200, Body: `{"cpu_percent":12.5,"disk_free_gb":40,"uptime_s":3600,"observed_at":"2026-01-01T00:00:00Z"}`},
	})
	defer srv.Close()

	c := NewClient(2 * time.Second)
	out, err := c.FetchStatus(context.Background(), srv.URL())
	require.NoError(t, err)
	assert.Equal(t, 12.5, out.CPUPercent)
}

package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwatch/aegis/internal/health"
	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/query"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

type fakeKitStore struct {
	kits map[string]models.Kit
}

func newFakeKitStore() *fakeKitStore { return &fakeKitStore{kits: map[string]models.Kit{}} }

func (f *fakeKitStore) Kits() []models.Kit {
	out := make([]models.Kit, 0, len(f.kits))
	for _, k := range f.kits {
		out = append(out, k)
	}
	return out
}
func (f *fakeKitStore) Get(id string) (models.Kit, bool) { k, ok := f.kits[id]; return k, ok }
func (f *fakeKitStore) Upsert(ctx context.Context, k models.Kit) models.Kit {
	f.kits[k.ID] = k
	return k
}
func (f *fakeKitStore) Delete(id string) { delete(f.kits, id) }
func (f *fakeKitStore) SetDisabled(ctx context.Context, id string, disabled bool) (models.Kit, bool) {
	k, ok := f.kits[id]
	if !ok {
		return models.Kit{}, false
	}
	k.DisabledByAdmin = disabled
	f.kits[id] = k
	return k, true
}
func (f *fakeKitStore) ProbeKit(ctx context.Context, id string) (time.Duration, error) {
	return 5 * time.Millisecond, nil
}

type fakeDataStore struct{ deleted []string }

func (f *fakeDataStore) DeleteKit(ctx context.Context, id string, purgeData bool) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRepository struct {
	tracks []models.Track
}

func (f *fakeRepository) QueryTracks(ctx context.Context, flt query.TrackFilter) ([]models.Track, error) {
	return f.tracks, nil
}
func (f *fakeRepository) QuerySignals(ctx context.Context, flt query.TrackFilter) ([]models.Signal, error) {
	return nil, nil
}
func (f *fakeRepository) DroneTrackHistory(ctx context.Context, droneID string, tr query.TimeRange, limit int) ([]models.Track, error) {
	return f.tracks, nil
}
func (f *fakeRepository) KitPositionsInWindow(ctx context.Context, tr query.TimeRange) (map[string]query.KitPosition, error) {
	return nil, nil
}
func (f *fakeRepository) TracksWithRSSIInWindow(ctx context.Context, droneID string, tr query.TimeRange) ([]models.Track, error) {
	return nil, nil
}

func newTestRouter() (*fakeKitStore, *fakeDataStore, http.Handler) {
	kits := newFakeKitStore()
	data := &fakeDataStore{}
	repo := &fakeRepository{}
	r := NewRouter(Config{Kits: kits, Data: data, Repository: repo})
	return kits, data, r
}

func TestHealthDefaultsHealthy(t *testing.T) {
	_, _, r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateKitThenDuplicateConflicts(t *testing.T) {
	_, _, r := newTestRouter()
	body := `{"id":"k1","name":"Kit One"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/kits", stringsReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/api/admin/kits", stringsReader(body))
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestDeleteUnknownKitIs404(t *testing.T) {
	_, _, r := newTestRouter()
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/kits/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCSVZeroRowsIsHeaderOnly(t *testing.T) {
	_, _, r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/export/csv", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kit_id")
}

func TestEstimateLocationNotFoundWhenNoObservations(t *testing.T) {
	_, _, r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/analysis/estimate-location/d1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var _ = health.StatusOnline

package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/avelins/traintrack/internal/backend"
	"github.com/avelins/traintrack/internal/cache"
	"github.com/avelins/traintrack/internal/store"
	"github.com/avelins/traintrack/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-memory CRUD backend for exercising the
// cached client end to end.
type fakeBackend struct {
	mutex     sync.Mutex
	exercises []backend.Exercise
	plans     []backend.TrainingPlan
	nextID    int
}

func (fb *fakeBackend) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mutex.Lock()
		defer fb.mutex.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/exercises":
			require.NoError(t, json.NewEncoder(w).Encode(fb.exercises))
		case r.Method == http.MethodPost && r.URL.Path == "/exercises":
			var exercise backend.Exercise
			require.NoError(t, json.NewDecoder(r.Body).Decode(&exercise))
			fb.nextID++
			exercise.ID = "ex-" + strconv.Itoa(fb.nextID)
			fb.exercises = append(fb.exercises, exercise)
			require.NoError(t, json.NewEncoder(w).Encode(exercise))
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/exercises/"):
			var exercise backend.Exercise
			require.NoError(t, json.NewDecoder(r.Body).Decode(&exercise))
			for i := range fb.exercises {
				if fb.exercises[i].ID == exercise.ID {
					fb.exercises[i] = exercise
				}
			}
			require.NoError(t, json.NewEncoder(w).Encode(exercise))
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/exercises/"):
			id := strings.TrimPrefix(r.URL.Path, "/exercises/")
			kept := fb.exercises[:0]
			for _, exercise := range fb.exercises {
				if exercise.ID != id {
					kept = append(kept, exercise)
				}
			}
			fb.exercises = kept
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/training-plans/"):
			id := strings.TrimPrefix(r.URL.Path, "/training-plans/")
			for _, plan := range fb.plans {
				if plan.ID == id {
					require.NoError(t, json.NewEncoder(w).Encode(plan))
					return
				}
			}
			http.Error(w, "not found", http.StatusNotFound)
		default:
			http.Error(w, "unexpected request: "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
		}
	})
}

func newCachedClientTest(t *testing.T) (*backend.CachedClient, *fakeBackend) {
	fb := &fakeBackend{}
	ts := httptest.NewServer(fb.handler(t))
	t.Cleanup(ts.Close)

	client := backend.NewClient(ts.URL, "test-key", ts.Client())
	cacheLayer := cache.New(store.NewMemStore(), metrics.NewTestManager())
	return backend.NewCachedClient(client, cacheLayer), fb
}

func TestCachedClient_Exercises(t *testing.T) {
	ctx := context.Background()
	cc, fb := newCachedClientTest(t)

	fb.exercises = []backend.Exercise{{ID: "ex-a", OwnerID: "coach-1", Name: "Bench Press"}}

	exercises, err := cc.Exercises(ctx, "coach-1", false)
	require.NoError(t, err)
	require.Len(t, exercises, 1)

	// a fresh cache serves the old list even after the backend changed
	fb.mutex.Lock()
	fb.exercises = append(fb.exercises, backend.Exercise{ID: "ex-b", OwnerID: "coach-1", Name: "Squat"})
	fb.mutex.Unlock()

	exercises, err = cc.Exercises(ctx, "coach-1", false)
	require.NoError(t, err)
	assert.Len(t, exercises, 1)

	// force refresh bypasses the cache
	exercises, err = cc.Exercises(ctx, "coach-1", true)
	require.NoError(t, err)
	assert.Len(t, exercises, 2)
}

func TestCachedClient_CreateExercise_WriteThrough(t *testing.T) {
	ctx := context.Background()
	cc, fb := newCachedClientTest(t)

	fb.exercises = []backend.Exercise{{ID: "ex-a", OwnerID: "coach-1", Name: "Bench Press"}}

	// prime the cache
	_, err := cc.Exercises(ctx, "coach-1", false)
	require.NoError(t, err)

	created, err := cc.CreateExercise(ctx, backend.Exercise{OwnerID: "coach-1", Name: "Squat"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// the cached list was patched, no refetch needed to see the write
	exercises, err := cc.Exercises(ctx, "coach-1", false)
	require.NoError(t, err)
	require.Len(t, exercises, 2)
	assert.Equal(t, "Squat", exercises[1].Name)
}

func TestCachedClient_UpdateAndDelete_WriteThrough(t *testing.T) {
	ctx := context.Background()
	cc, fb := newCachedClientTest(t)

	fb.exercises = []backend.Exercise{
		{ID: "ex-a", OwnerID: "coach-1", Name: "Bench Press"},
		{ID: "ex-b", OwnerID: "coach-1", Name: "Squat"},
	}

	_, err := cc.Exercises(ctx, "coach-1", false)
	require.NoError(t, err)

	updated, err := cc.UpdateExercise(ctx, backend.Exercise{ID: "ex-a", OwnerID: "coach-1", Name: "Incline Bench Press"})
	require.NoError(t, err)
	assert.Equal(t, "Incline Bench Press", updated.Name)

	exercises, err := cc.Exercises(ctx, "coach-1", false)
	require.NoError(t, err)
	require.Len(t, exercises, 2)
	assert.Equal(t, "Incline Bench Press", exercises[0].Name)

	require.NoError(t, cc.DeleteExercise(ctx, "coach-1", "ex-b"))
	exercises, err = cc.Exercises(ctx, "coach-1", false)
	require.NoError(t, err)
	require.Len(t, exercises, 1)
	assert.Equal(t, "ex-a", exercises[0].ID)
}

func TestCachedClient_PlanUpdateAvailable(t *testing.T) {
	ctx := context.Background()
	cc, fb := newCachedClientTest(t)

	fb.plans = []backend.TrainingPlan{{ID: "plan-1", OwnerID: "coach-1", Version: "3.7"}}

	available, err := cc.PlanUpdateAvailable(ctx, "plan-1", "3.6")
	require.NoError(t, err)
	assert.True(t, available)

	available, err = cc.PlanUpdateAvailable(ctx, "plan-1", "3.7")
	require.NoError(t, err)
	assert.False(t, available)

	// numeric comparison: 3.10 is newer than 3.7
	available, err = cc.PlanUpdateAvailable(ctx, "plan-1", "3.10")
	require.NoError(t, err)
	assert.False(t, available)

	_, err = cc.PlanUpdateAvailable(ctx, "plan-404", "1.0")
	require.Error(t, err)
}

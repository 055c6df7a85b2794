package backend

import (
	"context"
	"encoding/json"

	"github.com/avelins/traintrack/internal/cache"
	"github.com/avelins/traintrack/pkg"
)

const (
	ExercisesKey = "exercises"
	PlansKey     = "training-plans"
	TraineesKey  = "trainees"

	// SchemaVersion tags cached documents; bump it when a document
	// shape changes so stale-shaped cache records get dropped.
	SchemaVersion = "2"
)

// CachedClient serves coach-facing reads through the cache layer and
// keeps the cache consistent after writes: mutations patch the relevant
// slot directly instead of waiting for the next read's background
// refresh.
type CachedClient struct {
	client *Client
	cache  *cache.Cache
}

func NewCachedClient(client *Client, cacheLayer *cache.Cache) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cacheLayer,
	}
}

func (cc *CachedClient) loadOptions(forceRefresh bool) cache.LoadOptions {
	opts := cache.DefaultLoadOptions()
	opts.ForceRefresh = forceRefresh
	opts.Version = SchemaVersion
	return opts
}

// Exercises lists the coach's exercises, cached.
func (cc *CachedClient) Exercises(ctx context.Context, ownerID string, forceRefresh bool) ([]Exercise, error) {
	exercises, _, err := cache.LoadAs(ctx, cc.cache, ownerID, ExercisesKey, func(ctx context.Context) ([]Exercise, error) {
		return cc.client.ListExercises(ctx, ownerID)
	}, cc.loadOptions(forceRefresh))
	return exercises, err
}

// TrainingPlans lists the coach's plans, cached.
func (cc *CachedClient) TrainingPlans(ctx context.Context, ownerID string, forceRefresh bool) ([]TrainingPlan, error) {
	plans, _, err := cache.LoadAs(ctx, cc.cache, ownerID, PlansKey, func(ctx context.Context) ([]TrainingPlan, error) {
		return cc.client.ListTrainingPlans(ctx, ownerID)
	}, cc.loadOptions(forceRefresh))
	return plans, err
}

// Trainees lists the coach's trainees, cached.
func (cc *CachedClient) Trainees(ctx context.Context, coachID string, forceRefresh bool) ([]Trainee, error) {
	trainees, _, err := cache.LoadAs(ctx, cc.cache, coachID, TraineesKey, func(ctx context.Context) ([]Trainee, error) {
		return cc.client.ListTrainees(ctx, coachID)
	}, cc.loadOptions(forceRefresh))
	return trainees, err
}

func (cc *CachedClient) CreateExercise(ctx context.Context, exercise Exercise) (*Exercise, error) {
	created, err := cc.client.CreateExercise(ctx, exercise)
	if err != nil {
		return nil, err
	}
	cc.cache.AppendToList(ctx, created.OwnerID, ExercisesKey, created)
	return created, nil
}

func (cc *CachedClient) UpdateExercise(ctx context.Context, exercise Exercise) (*Exercise, error) {
	updated, err := cc.client.UpdateExercise(ctx, exercise)
	if err != nil {
		return nil, err
	}
	cc.cache.UpdateListItem(ctx, updated.OwnerID, ExercisesKey, matchID(updated.ID), updated)
	return updated, nil
}

func (cc *CachedClient) DeleteExercise(ctx context.Context, ownerID, id string) error {
	if err := cc.client.DeleteExercise(ctx, id); err != nil {
		return err
	}
	cc.cache.RemoveFromList(ctx, ownerID, ExercisesKey, matchID(id))
	return nil
}

func (cc *CachedClient) CreateTrainingPlan(ctx context.Context, plan TrainingPlan) (*TrainingPlan, error) {
	created, err := cc.client.CreateTrainingPlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	cc.cache.AppendToList(ctx, created.OwnerID, PlansKey, created)
	return created, nil
}

func (cc *CachedClient) UpdateTrainingPlan(ctx context.Context, plan TrainingPlan) (*TrainingPlan, error) {
	updated, err := cc.client.UpdateTrainingPlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	cc.cache.UpdateListItem(ctx, updated.OwnerID, PlansKey, matchID(updated.ID), updated)
	return updated, nil
}

func (cc *CachedClient) DeleteTrainingPlan(ctx context.Context, ownerID, id string) error {
	if err := cc.client.DeleteTrainingPlan(ctx, id); err != nil {
		return err
	}
	// dependent trainees may reference the plan; drop their slot so the
	// next read refetches instead of patching it here
	cc.cache.RemoveFromList(ctx, ownerID, PlansKey, matchID(id))
	cc.cache.Remove(ctx, ownerID, TraineesKey)
	return nil
}

func (cc *CachedClient) CreateTrainee(ctx context.Context, trainee Trainee) (*Trainee, error) {
	created, err := cc.client.CreateTrainee(ctx, trainee)
	if err != nil {
		return nil, err
	}
	cc.cache.AppendToList(ctx, created.CoachID, TraineesKey, created)
	return created, nil
}

// PlanUpdateAvailable reports whether the backend holds a newer version
// of the plan than currentVersion. Used by the daily update poll.
func (cc *CachedClient) PlanUpdateAvailable(ctx context.Context, planID, currentVersion string) (bool, error) {
	plan, err := cc.client.GetTrainingPlan(ctx, planID)
	if err != nil {
		return false, err
	}
	return pkg.CompareVersions(currentVersion, plan.Version) < 0, nil
}

func matchID(id string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var doc struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return false
		}
		return doc.ID == id
	}
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/avelins/traintrack/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Client talks to the CRUD backend. It cares only about documents in
// and out; transport details beyond the base URL and the api key are
// the backend's business.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) GetExercise(ctx context.Context, id string) (*Exercise, error) {
	var exercise Exercise
	if err := c.getJSON(ctx, "/exercises/"+url.PathEscape(id), &exercise); err != nil {
		return nil, err
	}
	return &exercise, nil
}

func (c *Client) ListExercises(ctx context.Context, ownerID string) ([]Exercise, error) {
	var exercises []Exercise
	if err := c.getJSON(ctx, "/exercises?ownerId="+url.QueryEscape(ownerID), &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

func (c *Client) CreateExercise(ctx context.Context, exercise Exercise) (*Exercise, error) {
	var created Exercise
	if err := c.sendJSON(ctx, http.MethodPost, "/exercises", exercise, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateExercise(ctx context.Context, exercise Exercise) (*Exercise, error) {
	var updated Exercise
	if err := c.sendJSON(ctx, http.MethodPut, "/exercises/"+url.PathEscape(exercise.ID), exercise, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteExercise(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/exercises/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetTrainingPlan(ctx context.Context, id string) (*TrainingPlan, error) {
	var plan TrainingPlan
	if err := c.getJSON(ctx, "/training-plans/"+url.PathEscape(id), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) ListTrainingPlans(ctx context.Context, ownerID string) ([]TrainingPlan, error) {
	var plans []TrainingPlan
	if err := c.getJSON(ctx, "/training-plans?ownerId="+url.QueryEscape(ownerID), &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *Client) CreateTrainingPlan(ctx context.Context, plan TrainingPlan) (*TrainingPlan, error) {
	var created TrainingPlan
	if err := c.sendJSON(ctx, http.MethodPost, "/training-plans", plan, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateTrainingPlan(ctx context.Context, plan TrainingPlan) (*TrainingPlan, error) {
	var updated TrainingPlan
	if err := c.sendJSON(ctx, http.MethodPut, "/training-plans/"+url.PathEscape(plan.ID), plan, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteTrainingPlan(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/training-plans/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetTrainee(ctx context.Context, id string) (*Trainee, error) {
	var trainee Trainee
	if err := c.getJSON(ctx, "/trainees/"+url.PathEscape(id), &trainee); err != nil {
		return nil, err
	}
	return &trainee, nil
}

func (c *Client) ListTrainees(ctx context.Context, coachID string) ([]Trainee, error) {
	var trainees []Trainee
	if err := c.getJSON(ctx, "/trainees?coachId="+url.QueryEscape(coachID), &trainees); err != nil {
		return nil, err
	}
	return trainees, nil
}

func (c *Client) CreateTrainee(ctx context.Context, trainee Trainee) (*Trainee, error) {
	var created Trainee
	if err := c.sendJSON(ctx, http.MethodPost, "/trainees", trainee, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListSessions(ctx context.Context, traineeID string) ([]Session, error) {
	var sessions []Session
	if err := c.getJSON(ctx, "/sessions?traineeId="+url.QueryEscape(traineeID), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) CreateSession(ctx context.Context, session Session) (*Session, error) {
	var created Session
	if err := c.sendJSON(ctx, http.MethodPost, "/sessions", session, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.sendJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "backend.request")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("path", path))

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Tracef("backend %s %s: status %d: %s", method, path, resp.StatusCode, respBytes)
		return fmt.Errorf("backend %s %s failed with status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("unmarshal backend response: %w", err)
	}
	return nil
}

package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) recorded() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func validEvent(stage Stage) Event {
	e := Event{
		JobID: "job-1",
		TS:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Stage: stage,
	}
	if stage == StageCategory || stage == StageProduct {
		e.URL = "https://shop.example.com/x"
	}
	return e
}

func TestHubDeliversInOrder(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{}, sink)

	hub.Publish(validEvent(StageJobStart))
	hub.Publish(validEvent(StageCategory))
	hub.Publish(validEvent(StageProduct))
	hub.Publish(validEvent(StageJobDone))
	hub.Close()

	events := sink.recorded()
	require.Len(t, events, 4)
	require.Equal(t, StageJobStart, events[0].Stage)
	require.Equal(t, StageJobDone, events[3].Stage)
	require.Zero(t, hub.Dropped())
}

func TestHubDropsInvalidAndAfterClose(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{}, sink)

	hub.Publish(Event{Stage: StageJobStart}) // missing job id
	hub.Publish(validEvent(Stage("BOGUS")))
	hub.Close()
	hub.Publish(validEvent(StageJobStart))

	require.Empty(t, sink.recorded())
	require.Equal(t, int64(3), hub.Dropped())
}

func TestHubSurvivesFailingSink(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{err: errors.New("sink down")}
	healthy := &recordingSink{}
	hub := NewHub(Config{Logger: zap.NewNop()}, failing, healthy)

	hub.Publish(validEvent(StageProduct))
	hub.Close()

	require.Len(t, healthy.recorded(), 1)
}

func TestNilHubPublishIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Publish(validEvent(StageJobStart))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validEvent(StageJobStart).Validate())
	require.NoError(t, validEvent(StageCategory).Validate())

	missing := validEvent(StageCategory)
	missing.URL = ""
	require.Error(t, missing.Validate())

	stale := validEvent(StageJobStart)
	stale.TS = time.Time{}
	require.Error(t, stale.Validate())
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeMarker struct {
	mu        sync.Mutex
	started   []uuid.UUID
	completed []uuid.UUID
}

func (f *fakeMarker) MarkStarted(ctx context.Context, lessonID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, lessonID)
	return nil
}

func (f *fakeMarker) MarkCompleted(ctx context.Context, lessonID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, lessonID)
	return nil
}

func (f *fakeMarker) startedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

func newTestRegistry(marker *fakeMarker) *Registry {
	deps := Deps{
		Slides:  &fakeSlides{count: 3},
		Answers: newFakeAnswers(),
		Lessons: marker,
		Linger:  20 * time.Millisecond,
	}
	return NewRegistry(deps, nil)
}

func TestRegistryStartIdempotent(t *testing.T) {
	marker := &fakeMarker{}
	r := newTestRegistry(marker)
	defer r.Shutdown()
	lessonID := uuid.New()

	a1, created := r.Start(context.Background(), lessonID)
	if !created {
		t.Fatal("first start should create the session")
	}
	a2, created := r.Start(context.Background(), lessonID)
	if created {
		t.Fatal("second start should reuse the session")
	}
	if a1 != a2 {
		t.Fatal("duplicate start returned a different actor")
	}
	if got := marker.startedCount(); got != 1 {
		t.Errorf("lesson marked started %d times, want 1", got)
	}
	if !r.Exists(lessonID) {
		t.Error("session should be registered")
	}
}

func TestRegistryConcurrentStartSingleActor(t *testing.T) {
	r := newTestRegistry(&fakeMarker{})
	defer r.Shutdown()
	lessonID := uuid.New()

	const racers = 16
	var wg sync.WaitGroup
	createdCount := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created := r.Start(context.Background(), lessonID)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	n := 0
	for created := range createdCount {
		if created {
			n++
		}
	}
	if n != 1 {
		t.Errorf("%d racing starts created a session, want 1", n)
	}
}

func TestRegistrySnapshotUnknownLesson(t *testing.T) {
	r := newTestRegistry(&fakeMarker{})
	defer r.Shutdown()

	if _, ok := r.Snapshot(context.Background(), uuid.New()); ok {
		t.Error("snapshot of unknown lesson should report absence")
	}
}

func TestRegistryRemovesRetiredSession(t *testing.T) {
	r := newTestRegistry(&fakeMarker{})
	defer r.Shutdown()
	lessonID := uuid.New()

	a, _ := r.Start(context.Background(), lessonID)
	if err := a.Apply(context.Background(), EndLesson{}); err != nil {
		t.Fatalf("end lesson: %v", err)
	}
	waitFor(t, func() bool { return !r.Exists(lessonID) }, "session removed after linger")

	// A later start creates a fresh session.
	_, created := r.Start(context.Background(), lessonID)
	if !created {
		t.Error("start after retirement should create a new session")
	}
}

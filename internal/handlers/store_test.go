package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/repository"
)

// memStore pushes a fresh snapshot to the owner's subscribers after every write.
type memStore struct {
	mu      sync.Mutex
	goals   map[string]models.Goal
	nextID  int
	subs    map[int]memSub
	nextSub int
}

type memSub struct {
	userID     string
	onSnapshot func([]models.Goal)
}

func newMemStore(goals ...models.Goal) *memStore {
	s := &memStore{goals: map[string]models.Goal{}, subs: map[int]memSub{}}
	for _, g := range goals {
		s.goals[g.ID] = g
	}
	return s
}

func (s *memStore) Subscribe(ctx context.Context, userID string, onSnapshot func([]models.Goal), onError func(error)) (repository.CancelFunc, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = memSub{userID: userID, onSnapshot: onSnapshot}
	initial := s.snapshotLocked(userID)
	s.mu.Unlock()

	onSnapshot(initial)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}, nil
}

func (s *memStore) GetGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(userID), nil
}

func (s *memStore) CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	s.mu.Lock()
	s.nextID++
	goal.ID = fmt.Sprintf("goal-%d", s.nextID)
	s.goals[goal.ID] = *goal
	s.mu.Unlock()

	s.changed(goal.UserID)
	return goal, nil
}

func (s *memStore) UpdateGoal(ctx context.Context, userID, id string, u models.GoalUpdate) error {
	s.mu.Lock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", repository.ErrGoalNotFound, id)
	}
	if u.Title != nil {
		g.Title = *u.Title
	}
	if u.TargetAmount != nil {
		g.TargetAmount = *u.TargetAmount
	}
	if u.CurrentAmount != nil {
		g.CurrentAmount = *u.CurrentAmount
	}
	if u.Deadline != nil {
		g.Deadline = *u.Deadline
	}
	if u.Archived != nil {
		g.Archived = *u.Archived
	}
	s.goals[id] = g
	s.mu.Unlock()

	s.changed(userID)
	return nil
}

func (s *memStore) CorrectGoalState(ctx context.Context, userID, id string, from, to models.GoalState) (bool, error) {
	s.mu.Lock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", repository.ErrGoalNotFound, id)
	}
	if g.State() != from {
		s.mu.Unlock()
		return false, nil
	}
	g.Status, g.Archived = to.Status, to.Archived
	s.goals[id] = g
	s.mu.Unlock()

	s.changed(userID)
	return true, nil
}

func (s *memStore) DeleteGoal(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", repository.ErrGoalNotFound, id)
	}
	delete(s.goals, id)
	s.mu.Unlock()

	s.changed(userID)
	return nil
}

func (s *memStore) goal(id string) (models.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	return g, ok
}

func (s *memStore) changed(userID string) {
	s.mu.Lock()
	snapshot := s.snapshotLocked(userID)
	var targets []func([]models.Goal)
	for _, sub := range s.subs {
		if sub.userID == userID {
			targets = append(targets, sub.onSnapshot)
		}
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(append([]models.Goal(nil), snapshot...))
	}
}

func (s *memStore) snapshotLocked(userID string) []models.Goal {
	out := []models.Goal{}
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/repository"
)

// --- Fakes ---

type fakeSub struct {
	userID     string
	onSnapshot func([]models.Goal)
	onError    func(error)
	cancelled  bool
}

type correctCall struct {
	userID   string
	id       string
	from, to models.GoalState
}

// fakeStore delivers snapshots synchronously: once inside Subscribe and then only
// when a test calls emit or emitGoals.
type fakeStore struct {
	mu           sync.Mutex
	goals        map[string]models.Goal
	nextID       int
	subs         []*fakeSub
	subscribeErr error
	correctErr   map[string]error
	corrections  []correctCall
	gate         chan struct{} // when set, corrections wait for it to close
}

func newFakeStore(goals ...models.Goal) *fakeStore {
	s := &fakeStore{goals: map[string]models.Goal{}, correctErr: map[string]error{}}
	for _, g := range goals {
		s.goals[g.ID] = g
	}
	return s
}

func (s *fakeStore) Subscribe(ctx context.Context, userID string, onSnapshot func([]models.Goal), onError func(error)) (repository.CancelFunc, error) {
	s.mu.Lock()
	if s.subscribeErr != nil {
		err := s.subscribeErr
		s.mu.Unlock()
		return nil, err
	}
	sub := &fakeSub{userID: userID, onSnapshot: onSnapshot, onError: onError}
	s.subs = append(s.subs, sub)
	initial := s.snapshotLocked(userID)
	s.mu.Unlock()

	onSnapshot(initial)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sub.cancelled = true
	}, nil
}

func (s *fakeStore) GetGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(userID), nil
}

func (s *fakeStore) CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	goal.ID = fmt.Sprintf("new-%d", s.nextID)
	s.goals[goal.ID] = *goal
	return goal, nil
}

func (s *fakeStore) UpdateGoal(ctx context.Context, userID, id string, u models.GoalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
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
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.Archived != nil {
		g.Archived = *u.Archived
	}
	s.goals[id] = g
	return nil
}

func (s *fakeStore) CorrectGoalState(ctx context.Context, userID, id string, from, to models.GoalState) (bool, error) {
	s.mu.Lock()
	s.corrections = append(s.corrections, correctCall{userID: userID, id: id, from: from, to: to})
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.correctErr[id]; err != nil {
		return false, err
	}
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return false, fmt.Errorf("%w: %s", repository.ErrGoalNotFound, id)
	}
	if g.State() != from {
		return false, nil
	}
	g.Status, g.Archived = to.Status, to.Archived
	s.goals[id] = g
	return true, nil
}

func (s *fakeStore) DeleteGoal(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return fmt.Errorf("%w: %s", repository.ErrGoalNotFound, id)
	}
	delete(s.goals, id)
	return nil
}

func (s *fakeStore) ScanGoals(ctx context.Context, fn func(models.Goal) error) error {
	s.mu.Lock()
	all := make([]models.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		all = append(all, g)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, g := range all {
		if err := fn(g); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) snapshotLocked(userID string) []models.Goal {
	out := []models.Goal{}
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// emit delivers the current stored goals to every live subscription of userID.
func (s *fakeStore) emit(userID string) {
	s.mu.Lock()
	snapshot := s.snapshotLocked(userID)
	s.mu.Unlock()
	s.emitGoals(userID, snapshot)
}

// emitGoals delivers an arbitrary, possibly stale, snapshot.
func (s *fakeStore) emitGoals(userID string, goals []models.Goal) {
	for _, sub := range s.liveSubs(userID) {
		sub.onSnapshot(append([]models.Goal(nil), goals...))
	}
}

func (s *fakeStore) fail(userID string, err error) {
	for _, sub := range s.liveSubs(userID) {
		sub.onError(err)
	}
}

func (s *fakeStore) liveSubs(userID string) []*fakeSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeSub
	for _, sub := range s.subs {
		if sub.userID == userID && !sub.cancelled {
			out = append(out, sub)
		}
	}
	return out
}

// allSubs includes cancelled subscriptions, for tests of late deliveries.
func (s *fakeStore) allSubs(userID string) []*fakeSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeSub
	for _, sub := range s.subs {
		if sub.userID == userID {
			out = append(out, sub)
		}
	}
	return out
}

func (s *fakeStore) goal(id string) models.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goals[id]
}

func (s *fakeStore) correctionLog() []correctCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]correctCall(nil), s.corrections...)
}

func (s *fakeStore) correctionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.corrections)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, notif models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notif)
}

func (n *fakeNotifier) ofType(t string) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, notif := range n.sent {
		if notif.Type == t {
			out = append(out, notif)
		}
	}
	return out
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []models.Activity
}

func (a *fakeActivity) LogActivity(ctx context.Context, userID, actionType, targetID, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, models.Activity{UserID: userID, Type: actionType, TargetID: targetID, Message: message})
	return nil
}

// clock is a settable time source.
type clock struct {
	mu    sync.Mutex
	t     time.Time
	calls int
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *clock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

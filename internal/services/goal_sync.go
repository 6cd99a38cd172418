package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dias221467/savings-goals/internal/goalrule"
	"github.com/Dias221467/savings-goals/internal/metrics"
	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/repository"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/sirupsen/logrus"
)

// SyncState is the lifecycle of a GoalSync subscription.
type SyncState int

const (
	StateUnsubscribed SyncState = iota
	StateSubscribing
	StateLive
	StateErrored
)

func (s SyncState) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribing:
		return "subscribing"
	case StateLive:
		return "live"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SyncState) UnmarshalText(text []byte) error {
	for _, candidate := range []SyncState{StateUnsubscribed, StateSubscribing, StateLive, StateErrored} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown sync state %q", text)
}

// SubscriptionErrorMessage is what consumers see when the live query fails.
const SubscriptionErrorMessage = "Could not load goals. Try again later."

const defaultCorrectiveWriteTimeout = 10 * time.Second

// GoalView is one published state of a GoalSync.
type GoalView struct {
	Goals   []models.Goal `json:"goals"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
	State   SyncState     `json:"state"`
}

type correction struct {
	goal models.Goal
	to   models.GoalState
}

// transition identifies an in-flight corrective write by the stored state it expects
// and the state it writes.
type transition struct {
	from, to models.GoalState
}

func (c correction) transition() transition {
	return transition{from: c.goal.State(), to: c.to}
}

// GoalSync keeps a derivation-consistent view of one user's goals.
//
// Snapshots from the store are reconciled one at a time: every goal is run through
// goalrule with a single sampled now, goals whose stored status/archived disagree get
// a fire-and-forget corrective write, and the published view always carries the derived
// values. Corrective writes only touch status and archived, while user edits never do,
// so a correction racing with an edit cannot clobber it.
//
// Watch listeners run on the goroutine that produced the change and must not call
// SetUser, Reconnect, Refresh or Close.
type GoalSync struct {
	goals        *GoalService
	writeTimeout time.Duration

	ctx  context.Context
	stop context.CancelFunc

	passMu    sync.Mutex // one reconciliation pass at a time
	publishMu sync.Mutex // listeners see views in publish order

	mu           sync.Mutex
	userID       string
	gen          uint64
	state        SyncState
	view         []models.Goal
	stored       []models.Goal
	errMsg       string
	cancel       repository.CancelFunc
	pending      map[string]transition
	announced    map[string]bool
	listeners    map[int]func(GoalView)
	nextListener int
	closed       bool

	writes sync.WaitGroup
}

// NewGoalSync returns an unsubscribed GoalSync. Mutations, the clock and the deadline
// location come from goals. A non-positive writeTimeout uses the default.
func NewGoalSync(goals *GoalService, writeTimeout time.Duration) *GoalSync {
	if writeTimeout <= 0 {
		writeTimeout = defaultCorrectiveWriteTimeout
	}
	ctx, stop := context.WithCancel(context.Background())
	return &GoalSync{
		goals:        goals,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		stop:         stop,
		pending:      map[string]transition{},
		announced:    map[string]bool{},
		listeners:    map[int]func(GoalView){},
	}
}

// UserID returns the active session identifier, or "".
func (s *GoalSync) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetUser moves the subscription to userID. The previous subscription is released
// first. An unchanged identifier is a no-op and "" just detaches.
func (s *GoalSync) SetUser(userID string) {
	s.mu.Lock()
	if s.closed || userID == s.userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	gen, prev := s.resetLocked(userID, false)
	s.mu.Unlock()

	s.attach(gen, userID, prev)
}

// Reconnect re-establishes a subscription that ended in an error. The last good
// collection stays visible until the new subscription delivers.
func (s *GoalSync) Reconnect() {
	s.mu.Lock()
	userID := s.userID
	if s.closed || userID == "" || s.state != StateErrored {
		s.mu.Unlock()
		return
	}
	gen, prev := s.resetLocked(userID, true)
	s.mu.Unlock()

	s.attach(gen, userID, prev)
}

// resetLocked starts a new generation for userID and returns it with the
// subscription it supersedes. Callers hold mu from the moment they change userID.
func (s *GoalSync) resetLocked(userID string, keepView bool) (uint64, repository.CancelFunc) {
	s.gen++
	prev := s.cancel
	s.cancel = nil
	s.errMsg = ""
	s.pending = map[string]transition{}
	if !keepView {
		s.view, s.stored = nil, nil
		s.announced = map[string]bool{}
	}
	if userID == "" {
		s.state = StateUnsubscribed
	} else {
		s.state = StateSubscribing
	}
	return s.gen, prev
}

func (s *GoalSync) attach(gen uint64, userID string, prev repository.CancelFunc) {
	if prev != nil {
		prev()
	}
	s.publish()

	if userID == "" {
		return
	}

	cancel, err := s.goals.store.Subscribe(s.ctx, userID,
		func(goals []models.Goal) { s.handleSnapshot(gen, goals) },
		func(err error) { s.handleError(gen, err) },
	)
	if err != nil {
		s.handleError(gen, err)
		return
	}

	s.mu.Lock()
	if gen == s.gen && !s.closed {
		s.cancel, cancel = cancel, nil
	}
	s.mu.Unlock()
	if cancel != nil {
		// Superseded while subscribing.
		cancel()
	}
}

func (s *GoalSync) handleSnapshot(gen uint64, goals []models.Goal) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	s.reconcile(gen, goals)
}

func (s *GoalSync) handleError(gen uint64, err error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	s.errMsg = SubscriptionErrorMessage
	userID := s.userID
	s.mu.Unlock()

	metrics.SubscriptionErrors.Inc()
	logger.Log.WithError(err).WithField("user_id", userID).Error("Goal subscription failed")
	s.publish()
}

// Refresh re-runs the derivation pass over the last snapshot with a fresh now, so
// deadlines that passed since the last store change take effect.
func (s *GoalSync) Refresh() {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	s.mu.Lock()
	gen, state := s.gen, s.state
	stored := append([]models.Goal(nil), s.stored...)
	s.mu.Unlock()

	if state != StateLive {
		return
	}
	s.reconcile(gen, stored)
}

// reconcile must run with passMu held.
func (s *GoalSync) reconcile(gen uint64, stored []models.Goal) {
	now := s.goals.now()

	derived := make([]models.Goal, 0, len(stored))
	var fixes []correction
	for _, g := range stored {
		state, changed := goalrule.Reconcile(g, now, s.goals.loc)
		if changed {
			fixes = append(fixes, correction{goal: g, to: state})
		}
		g.Status, g.Archived = state.Status, state.Archived
		derived = append(derived, g)
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.stored = append([]models.Goal(nil), stored...)
	s.view = derived
	s.state = StateLive
	s.errMsg = ""

	announced := make(map[string]bool, len(s.announced))
	for _, g := range derived {
		if g.Archived && s.announced[g.ID] {
			announced[g.ID] = true
		}
	}
	s.announced = announced

	// An in-flight write only covers a fix with the same from and to.
	issue := fixes[:0]
	for _, f := range fixes {
		if pending, ok := s.pending[f.goal.ID]; ok && pending == f.transition() {
			continue
		}
		s.pending[f.goal.ID] = f.transition()
		issue = append(issue, f)
	}
	userID := s.userID
	s.mu.Unlock()

	metrics.ReconciliationPasses.Inc()
	logger.Log.WithFields(logrus.Fields{
		"user_id":     userID,
		"count":       len(derived),
		"corrections": len(issue),
	}).Debug("Reconciled goal snapshot")

	for _, f := range issue {
		s.startCorrection(gen, userID, f)
	}
	s.publish()
}

func (s *GoalSync) startCorrection(gen uint64, userID string, f correction) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()

		id := f.goal.ID
		matched, err := s.goals.store.CorrectGoalState(ctx, userID, id, f.goal.State(), f.to)

		s.mu.Lock()
		current := gen == s.gen && !s.closed
		announce := false
		if current {
			if s.pending[id] == f.transition() {
				delete(s.pending, id)
			}
			if err == nil && matched {
				s.patchStored(id, f.to)
				if f.to.Archived && !f.goal.Archived && !s.announced[id] {
					s.announced[id] = true
					announce = true
				}
			}
		}
		s.mu.Unlock()

		log := logger.Log.WithFields(logrus.Fields{"user_id": userID, "goal_id": id})
		switch {
		case err != nil:
			metrics.CorrectiveWrites.WithLabelValues(metrics.SourceSession, metrics.ResultError).Inc()
			log.WithError(err).Warn("Corrective goal write failed")
			return
		case !matched:
			metrics.CorrectiveWrites.WithLabelValues(metrics.SourceSession, metrics.ResultConflict).Inc()
			log.Debug("Goal changed before correction landed")
			return
		}
		metrics.CorrectiveWrites.WithLabelValues(metrics.SourceSession, metrics.ResultOK).Inc()

		if announce {
			metrics.ArchiveNotifications.Inc()
			s.goals.notifier.Notify(ctx, archivedNotification(userID, f.goal))
		}
	}()
}

// patchStored must run with mu held.
func (s *GoalSync) patchStored(id string, state models.GoalState) {
	for i := range s.stored {
		if s.stored[i].ID == id {
			s.stored[i].Status, s.stored[i].Archived = state.Status, state.Archived
			return
		}
	}
}

func archivedNotification(userID string, g models.Goal) models.Notification {
	return models.Notification{
		UserID:   userID,
		Type:     models.NotificationGoalArchived,
		Title:    "🎯 Goal Archived",
		Message:  fmt.Sprintf("%q was completed and archived.", g.Title),
		TargetID: g.ID,
	}
}

// View returns the current published state.
func (s *GoalSync) View() GoalView {
	s.mu.Lock()
	defer s.mu.Unlock()

	goals := make([]models.Goal, len(s.view))
	copy(goals, s.view)
	return GoalView{
		Goals:   goals,
		Loading: s.state == StateUnsubscribed || s.state == StateSubscribing,
		Error:   s.errMsg,
		State:   s.state,
	}
}

// List returns the derivation-corrected goals.
func (s *GoalSync) List() []models.Goal { return s.View().Goals }

// Loading is true until the first snapshot or error of the current subscription.
func (s *GoalSync) Loading() bool { return s.View().Loading }

// Error is the subscription error message, or "".
func (s *GoalSync) Error() string { return s.View().Error }

func (s *GoalSync) State() SyncState { return s.View().State }

// Watch registers fn to receive every published view and returns a function that
// removes it.
func (s *GoalSync) Watch(fn func(GoalView)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *GoalSync) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	view := s.View()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	listeners := make([]func(GoalView), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

// Create adds a goal for the active user.
func (s *GoalSync) Create(ctx context.Context, in models.GoalInput) error {
	_, err := s.goals.Create(ctx, s.UserID(), in)
	return err
}

// Update applies a partial update, archive toggles included, to one of the active
// user's goals.
func (s *GoalSync) Update(ctx context.Context, id string, update models.GoalUpdate) error {
	return s.goals.Update(ctx, s.UserID(), id, update)
}

// Delete removes one of the active user's goals.
func (s *GoalSync) Delete(ctx context.Context, id string) error {
	return s.goals.Delete(ctx, s.UserID(), id)
}

// Close releases the subscription and waits for in-flight corrective writes, whose
// outcomes no longer touch this GoalSync.
func (s *GoalSync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	cancel := s.cancel
	s.cancel = nil
	s.state = StateUnsubscribed
	s.listeners = map[int]func(GoalView){}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.stop()
	s.writes.Wait()
}

package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	actorLockKeyPattern = "minibank:lock:%d"
	actorLockTTL        = 5 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that no session exists for the actor.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that another replica is writing the actor's session.
	ErrStateLocked = errors.New("state is locked, try again later")
)

// releaseScript deletes the lock only while it still holds our token, so a
// lock that expired and was taken over is left to its new owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder lets metrics observe accepted transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the session controller.
type StateMachine interface {
	// GetState returns the actor's session, or a fresh idle one when none exists.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	SetState(ctx context.Context, userID int64, state State, contextData map[string]string) error
	// TransitionTo moves to newState if the table allows it, replacing the scratch data.
	TransitionTo(ctx context.Context, userID int64, newState State, contextData map[string]string) error
	ClearState(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

type machine struct {
	storage Storage
	log     *slog.Logger
	locks   *redis.Client
}

// NewStateMachine creates a session controller over storage. When locks is
// set, every write holds a short-lived Redis lock so replicas sharing the
// session store cannot interleave writes for one actor.
func NewStateMachine(storage Storage, log *slog.Logger, locks *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage: storage,
		log:     log.With(slog.String("component", "session")),
		locks:   locks,
	}
}

func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	st, err := m.storage.GetState(ctx, userID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		return &UserState{UserID: userID, CurrentState: StateIdle}, nil
	case err != nil:
		return nil, err
	}
	return st, nil
}

func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	return m.storage.GetAllStates(ctx)
}

func (m *machine) SetState(ctx context.Context, userID int64, state State, contextData map[string]string) error {
	return m.withLock(ctx, userID, func() error {
		return m.save(ctx, userID, state, contextData)
	})
}

func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State, contextData map[string]string) error {
	return m.withLock(ctx, userID, func() error {
		current := StateIdle

		stored, err := m.storage.GetState(ctx, userID)
		switch {
		case err == nil && stored != nil:
			current = stored.CurrentState
		case err != nil && !errors.Is(err, ErrStateNotFound):
			return err
		}

		if !IsTransitionAllowed(current, newState) {
			m.log.WarnContext(ctx, "invalid state transition",
				slog.Int64("user_id", userID),
				slog.String("from", string(current)),
				slog.String("to", string(newState)),
			)
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newState)
		}

		transitionRecorder(string(current), string(newState))

		// idle carries no scratch data, so it is stored as no session at all
		if newState == StateIdle {
			return m.storage.ClearState(ctx, userID)
		}
		return m.save(ctx, userID, newState, contextData)
	})
}

// ClearState drops the session, which is equivalent to returning to idle
// with an empty scratch map.
func (m *machine) ClearState(ctx context.Context, userID int64) error {
	return m.withLock(ctx, userID, func() error {
		return m.storage.ClearState(ctx, userID)
	})
}

func (m *machine) save(ctx context.Context, userID int64, state State, contextData map[string]string) error {
	return m.storage.SetState(ctx, userID, &UserState{
		UserID:       userID,
		CurrentState: state,
		Context:      contextData,
	})
}

// withLock runs fn while holding the actor's Redis lock. Without a Redis
// client fn runs directly; the engine already serializes one process.
func (m *machine) withLock(ctx context.Context, userID int64, fn func() error) error {
	if m.locks == nil {
		return fn()
	}

	key := fmt.Sprintf(actorLockKeyPattern, userID)
	token := uuid.NewString()

	acquired, err := m.locks.SetNX(ctx, key, token, actorLockTTL).Result()
	if err != nil {
		m.log.ErrorContext(ctx, "failed to acquire session lock", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}
	if !acquired {
		m.log.WarnContext(ctx, "session lock already held", slog.Int64("user_id", userID))
		return ErrStateLocked
	}

	defer func() {
		// release even when the caller's context is already done
		releaseCtx := context.WithoutCancel(ctx)
		if err := releaseScript.Run(releaseCtx, m.locks, []string{key}, token).Err(); err != nil {
			m.log.ErrorContext(ctx, "failed to release session lock", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}()

	return fn()
}

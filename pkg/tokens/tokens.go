// Package tokens keeps the daily broker access token each workflow needs to place Zerodha orders.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/quantnest/executor/pkg/market"
)

var ErrTokenNotFound = errors.New("token record not found")

type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
	StateExpired State = "expired"
)

const (
	MessageTokenRequired = "Access token required. Please provide your Zerodha access token."
	MessageTokenPending  = "Waiting for access token. Please provide your Zerodha access token."
	MessageTokenExpired  = "Your Zerodha access token has expired. Please provide a new token."
	MessageStatusError   = "Error checking token status"
)

// Record is the stored token state of one (user, workflow) pair.
type Record struct {
	UserID      string     `json:"userId"`
	WorkflowID  string     `json:"workflowId"`
	AccessToken string     `json:"accessToken,omitempty"`
	RequestID   string     `json:"tokenRequestId,omitempty"`
	State       State      `json:"status"`
	ExpiresAt   *time.Time `json:"tokenExpiresAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Status tells a broker handler whether it may trade and, if not, what the user has to do.
type Status struct {
	Valid      bool
	NeedsToken bool
	ExpiresAt  *time.Time
	Message    string
	RequestID  string
}

// Backend persists records. Load returns ErrTokenNotFound when there is none.
type Backend interface {
	Load(ctx context.Context, userID, workflowID string) (*Record, error)
	Store(ctx context.Context, record *Record) error
	Remove(ctx context.Context, userID, workflowID string) error
}

// Store applies the token lifecycle on top of a Backend: a request is opened when no usable token
// exists, a saved token is active until the next IST midnight, and expired tokens open a new request.
type Store struct {
	logger  *slog.Logger
	backend Backend
	now     func() time.Time
}

func NewStore(logger *slog.Logger, backend Backend) *Store {
	return &Store{
		logger:  logger.With("module", "tokens"),
		backend: backend,
		now:     time.Now,
	}
}

// WithClock replaces the store's clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now

	return s
}

// Status reports the token state, opening a token request when the user has to supply a token.
// A backend failure is reported as a status with MessageStatusError alongside the error.
func (s *Store) Status(ctx context.Context, userID, workflowID string) (Status, error) {
	record, err := s.backend.Load(ctx, userID, workflowID)
	if errors.Is(err, ErrTokenNotFound) {
		requestID, err := s.CreateRequest(ctx, userID, workflowID)
		if err != nil {
			return Status{NeedsToken: true, Message: MessageStatusError}, err
		}

		return Status{NeedsToken: true, Message: MessageTokenRequired, RequestID: requestID}, nil
	}

	if err != nil {
		return Status{NeedsToken: true, Message: MessageStatusError}, err
	}

	if record.State == StatePending || record.AccessToken == "" {
		return Status{NeedsToken: true, Message: MessageTokenPending, RequestID: record.RequestID}, nil
	}

	now := s.now()

	if record.State == StateExpired || expired(record, now) {
		requestID, err := s.CreateRequest(ctx, userID, workflowID)
		if err != nil {
			return Status{NeedsToken: true, Message: MessageStatusError}, err
		}

		return Status{NeedsToken: true, Message: MessageTokenExpired, RequestID: requestID}, nil
	}

	hours := 24
	if record.ExpiresAt != nil {
		hours = int(math.Ceil(record.ExpiresAt.Sub(now).Hours()))
	}

	return Status{
		Valid:     true,
		ExpiresAt: record.ExpiresAt,
		Message:   fmt.Sprintf("Token valid for %d more hours.", hours),
	}, nil
}

// AccessToken returns the active token, or "" when there is none. A token found past its expiry is
// marked expired.
func (s *Store) AccessToken(ctx context.Context, userID, workflowID string) (string, error) {
	record, err := s.backend.Load(ctx, userID, workflowID)
	if errors.Is(err, ErrTokenNotFound) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	if expired(record, s.now()) {
		record.State = StateExpired
		record.UpdatedAt = s.now()

		err = s.backend.Store(ctx, record)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to mark token expired", "workflow_id", workflowID, "error", err)
		}

		return "", nil
	}

	if record.State != StateActive {
		return "", nil
	}

	return record.AccessToken, nil
}

// CreateRequest opens a new token request, discarding any stored token.
func (s *Store) CreateRequest(ctx context.Context, userID, workflowID string) (string, error) {
	requestID := uuid.NewString()

	record := &Record{
		UserID:     userID,
		WorkflowID: workflowID,
		RequestID:  requestID,
		State:      StatePending,
		UpdatedAt:  s.now(),
	}

	err := s.backend.Store(ctx, record)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	return requestID, nil
}

// Save stores an access token valid until the next midnight IST.
func (s *Store) Save(ctx context.Context, userID, workflowID, accessToken string) error {
	now := s.now()
	expiresAt := NextMidnight(now)

	err := s.backend.Store(ctx, &Record{
		UserID:      userID,
		WorkflowID:  workflowID,
		AccessToken: accessToken,
		State:       StateActive,
		ExpiresAt:   &expiresAt,
		UpdatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, userID, workflowID string) error {
	err := s.backend.Remove(ctx, userID, workflowID)
	if err != nil && !errors.Is(err, ErrTokenNotFound) {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return nil
}

// NextMidnight is the start of the IST day after now.
func NextMidnight(now time.Time) time.Time {
	ist := now.In(market.IST)

	return time.Date(ist.Year(), ist.Month(), ist.Day()+1, 0, 0, 0, 0, market.IST)
}

func expired(record *Record, now time.Time) bool {
	return record.ExpiresAt != nil && now.After(*record.ExpiresAt)
}

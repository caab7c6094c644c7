package client

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/juicyshop/backend/internal/notify"
)

// WelcomeText is sent to a client the first time they appear.
const WelcomeText = "Welcome to our store! The basic rules are on the " +
	"“Important information” page, reachable from the main menu."

// Service handles idempotent client bootstrap.
type Service struct {
	clients  Repository
	notifier notify.Dispatcher
}

// NewService creates a client Service.
func NewService(clients Repository, notifier notify.Dispatcher) *Service {
	return &Service{clients: clients, notifier: notifier}
}

// RegisterVisit ensures a client record exists for the given id and reports
// whether it was just created. New clients get a welcome message; delivery
// failures are logged and swallowed.
func (s *Service) RegisterVisit(ctx context.Context, id string) (isNew bool, err error) {
	if id == "" {
		return false, errors.New("client id required")
	}

	_, created, err := s.clients.Ensure(ctx, id, "")
	if err != nil {
		return false, errors.Wrap(err, "ensure client")
	}

	if created {
		if err := s.notifier.Customer(ctx, id, WelcomeText); err != nil {
			zctx.From(ctx).Warn("Welcome message delivery failed",
				zap.String("client_id", id), zap.Error(err))
		}
	}
	return created, nil
}

package referral

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/juicyshop/backend/internal/domain/client"
)

// ErrSelfReferral is returned when a client tries to refer themselves.
var ErrSelfReferral = errors.New("self referral is not allowed")

// activeWindow is how far back an order counts a referral as active.
const activeWindow = 30 * 24 * time.Hour

// Graph maintains the client→referrer mapping. Attribution follows the last
// click before the client's first completed order; after that the edge is
// immutable.
type Graph struct {
	clients client.Repository
	now     func() time.Time
}

// NewGraph creates a referral Graph.
func NewGraph(clients client.Repository) *Graph {
	return &Graph{clients: clients, now: time.Now}
}

// Attach links the client to the referrer. Both records are ensured first, so
// a referrer who has never interacted with the system gets a zero-balance
// placeholder for future credits. The edge is only written while the client
// has zero completed orders; afterwards Attach reports attached=false.
//
// Every successful attach, including an idempotent repeat with the same
// referrer, increments the referrer's click counter. Click analytics are
// independent of attribution changes.
func (g *Graph) Attach(ctx context.Context, clientID, referrerID string) (bool, error) {
	if clientID == "" || referrerID == "" {
		return false, errors.New("client and referrer ids required")
	}
	if clientID == referrerID {
		return false, ErrSelfReferral
	}

	if _, _, err := g.clients.Ensure(ctx, referrerID, ""); err != nil {
		return false, errors.Wrap(err, "ensure referrer")
	}
	if _, _, err := g.clients.Ensure(ctx, clientID, ""); err != nil {
		return false, errors.Wrap(err, "ensure client")
	}

	attached, err := g.clients.SetReferrer(ctx, clientID, referrerID)
	if err != nil {
		return false, errors.Wrap(err, "set referrer")
	}
	if !attached {
		// First-purchase lock: the client already has completed orders.
		return false, nil
	}

	if err := g.clients.IncrementClicks(ctx, referrerID); err != nil {
		return false, errors.Wrap(err, "count referral click")
	}
	return true, nil
}

// Stats aggregates the referrer's invite funnel: total referred clients,
// clients active within the last 30 days, and link clicks. The three reads
// are independent and run concurrently.
func (g *Graph) Stats(ctx context.Context, referrerID string) (*client.ReferralStats, error) {
	var stats client.ReferralStats

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		n, err := g.clients.CountReferrals(ctx, referrerID)
		stats.Total = n
		return err
	})
	grp.Go(func() error {
		n, err := g.clients.CountActiveReferrals(ctx, referrerID, g.now().Add(-activeWindow))
		stats.Active = n
		return err
	})
	grp.Go(func() error {
		c, err := g.clients.Get(ctx, referrerID)
		if errors.Is(err, client.ErrNotFound) {
			return nil
		}
		if err == nil {
			stats.Clicks = c.ReferralClicks
		}
		return err
	})

	if err := grp.Wait(); err != nil {
		return nil, errors.Wrap(err, "referral stats")
	}
	return &stats, nil
}

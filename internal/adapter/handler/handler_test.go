package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

const (
	admin  domain.Account = "platform"
	seller domain.Account = "seller"
	buyer  domain.Account = "buyer"
)

// newService returns a service with one approved seller and one listing of
// 10 units at 1000 each.
func newService(t *testing.T) (*service.MarketService, domain.ListingID) {
	t.Helper()
	svc, err := service.NewMarketService(service.Config{
		Admin:     admin,
		Fees:      domain.FeeSchedule{FeeBps: 250},
		QueueSize: 256,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	go func() {
		for range svc.GetEventQueue() {
		}
	}()

	ctx := context.Background()
	require.NoError(t, svc.ApproveSeller(ctx, admin, seller, true))
	id, err := svc.CreateListing(ctx, seller, "widget", 10, 1000)
	require.NoError(t, err)
	return svc, id
}

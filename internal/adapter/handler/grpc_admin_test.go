package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func TestGRPC_SellerFlow(t *testing.T) {
	client, _ := newGRPCClient(t)
	const newSeller domain.Account = "seller-2"

	_, err := client.CreateListing(as(newSeller), &CreateListingRequest{Name: "gadget", Quantity: 3, Price: 500})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.ApproveSeller(as(buyer), &ApproveSellerRequest{Account: string(newSeller), Approved: true})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	_, err = client.ApproveSeller(as(admin), &ApproveSellerRequest{Account: string(newSeller), Approved: true})
	require.NoError(t, err)

	created, err := client.CreateListing(as(newSeller), &CreateListingRequest{Name: "gadget", Quantity: 3, Price: 500})
	require.NoError(t, err)
	id := created.ListingID
	require.NotZero(t, id)

	_, err = client.CreateListing(as(newSeller), &CreateListingRequest{Quantity: 3, Price: 500})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	ack, err := client.SetListingPrice(as(newSeller), &SetListingPriceRequest{ListingID: id, Price: 600})
	require.NoError(t, err)
	assert.Equal(t, "price updated", ack.Message)
	_, err = client.SetListingPrice(as(newSeller), &SetListingPriceRequest{ListingID: id, Price: 600})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	_, err = client.SetListingPrice(as(buyer), &SetListingPriceRequest{ListingID: id, Price: 700})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.SetListingQuantity(as(newSeller), &SetListingQuantityRequest{ListingID: id, Quantity: 1})
	require.NoError(t, err)

	resp, err := client.Purchase(as(buyer), &PurchaseRequest{RequestID: "r1", ListingID: id, Amount: 1, Value: 600})
	require.NoError(t, err)

	// The last unit sold deactivates the listing
	_, err = client.Purchase(as(buyer), &PurchaseRequest{RequestID: "r2", ListingID: id, Amount: 1, Value: 600})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	_, err = client.SetListingActive(as(newSeller), &SetListingActiveRequest{ListingID: id, Active: true})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.ShipOrder(as(newSeller), &ShipOrderRequest{OrderID: resp.OrderID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	_, err = client.ShipOrder(as(admin), &ShipOrderRequest{OrderID: resp.OrderID})
	require.NoError(t, err)

	_, err = client.SetListingDelisted(as(newSeller), &SetListingDelistedRequest{ListingID: id, Delisted: true})
	require.NoError(t, err)
	_, err = client.SetListingQuantity(as(newSeller), &SetListingQuantityRequest{ListingID: id, Quantity: 5})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_AdminControls(t *testing.T) {
	client, id := newGRPCClient(t)
	purchase := func(requestID string) error {
		_, err := client.Purchase(as(buyer), &PurchaseRequest{RequestID: requestID, ListingID: uint64(id), Amount: 1, Value: 1000})
		return err
	}

	_, err := client.SetFee(as(admin), &SetFeeRequest{Kind: string(domain.FeeStandard), Bps: 5_001})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.SetFee(as(admin), &SetFeeRequest{Kind: string(domain.FeeCashback), Bps: 100})
	require.NoError(t, err)
	_, err = client.SetVIP(as(admin), &SetVIPRequest{Account: string(buyer), Role: "nobody", VIP: true})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.SetVIP(as(admin), &SetVIPRequest{Account: string(buyer), Role: string(domain.VIPBuyer), VIP: true})
	require.NoError(t, err)

	resp, err := client.Purchase(as(buyer), &PurchaseRequest{RequestID: "r1", ListingID: uint64(id), Amount: 1, Value: 1000})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), resp.Cashback)

	_, err = client.SetOrderIntake(as(admin), &SetOrderIntakeRequest{Open: false})
	require.NoError(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(purchase("r2")))
	_, err = client.SetOrderIntake(as(admin), &SetOrderIntakeRequest{Open: true})
	require.NoError(t, err)
	require.NoError(t, purchase("r3"))

	_, err = client.SetInventoryState(as(admin), &SetInventoryStateRequest{Action: "melt"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.SetInventoryState(as(admin), &SetInventoryStateRequest{Action: "freeze"})
	require.NoError(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(purchase("r4")))
	_, err = client.SetInventoryState(as(admin), &SetInventoryStateRequest{Action: "unfreeze"})
	require.NoError(t, err)

	_, err = client.RemoveListing(as(seller), &ListingRequest{ListingID: uint64(id)})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	_, err = client.RemoveListing(as(admin), &ListingRequest{ListingID: uint64(id)})
	require.NoError(t, err)
	assert.Equal(t, codes.NotFound, status.Code(purchase("r5")))

	// No payout primitive is configured
	_, err = client.WithdrawPlatform(as(admin), &WithdrawRequest{Amount: 1})
	assert.Equal(t, codes.Aborted, status.Code(err))
	_, err = client.WithdrawPlatform(as(buyer), &WithdrawRequest{Amount: 1})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.ShipOrder(context.Background(), &ShipOrderRequest{OrderID: resp.OrderID})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPC_ReservedCallerRejected(t *testing.T) {
	client, id := newGRPCClient(t)

	_, err := client.Purchase(as("system:market"), &PurchaseRequest{RequestID: "r1", ListingID: uint64(id), Amount: 1, Value: 1000})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	_, err = client.ApproveSeller(as(admin), &ApproveSellerRequest{Account: "system:orders", Approved: true})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	admin         = domain.Account("stress-admin")
	seller        = domain.Account("stress-seller")
	initialStock  = 20
	price         = 1_000
	totalRequests = 50
	queueSize     = 100
)

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	redisAdapter := storage.NewRedisAdapter(rdb)
	marketService, err := service.NewMarketService(service.Config{
		Admin:     admin,
		Fees:      domain.FeeSchedule{FeeBps: 250, VIPFeeBps: 100},
		QueueSize: queueSize,
	}, redisAdapter, logger)
	if err != nil {
		logger.Fatal("failed to deploy marketplace", zap.Error(err))
	}

	if err := marketService.ApproveSeller(ctx, admin, seller, true); err != nil {
		logger.Fatal("failed to approve seller", zap.Error(err))
	}
	listingID, err := marketService.CreateListing(ctx, seller, "stress-item", initialStock, price)
	if err != nil {
		logger.Fatal("failed to create listing", zap.Error(err))
	}
	listing, _ := marketService.Listing(listingID)

	// Clear previous test data before any projection lands
	keys, _ := rdb.Keys(ctx, "purchase:stress-user-*").Result()
	keys = append(keys, fmt.Sprintf("stock:%d", listing.ItemID))
	rdb.Del(ctx, keys...)

	// Project availability into Redis in the background
	wg := service.NewProjector(nil, redisAdapter, nil, logger).Start(4, marketService.GetEventQueue())

	var successCount atomic.Int32
	var failCount atomic.Int32

	var buyers sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		buyers.Add(1)
		go func(userID int) {
			defer buyers.Done()

			buyer := domain.Account(fmt.Sprintf("stress-user-%d", userID))
			requestID := fmt.Sprintf("req-%d", userID)
			_, err := marketService.Purchase(ctx, requestID, buyer, listingID, 1, price)
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	buyers.Wait()
	elapsed := time.Since(start)

	marketService.Close()
	wg.Wait()

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Dropped Batches:  %d\n", marketService.Dropped())
	fmt.Println("==========================================")

	if success == initialStock && fail == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d purchases succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	item := marketService.Item(listing.ItemID)
	if item.Reserved == 0 && item.Quantity == 0 {
		fmt.Println("PASS: Stock depleted with no open reservations")
	} else {
		fmt.Printf("FAIL: Expected quantity 0 reserved 0, got %d/%d\n", item.Quantity, item.Reserved)
	}

	acc := marketService.Accounting()
	if acc.Balanced() && acc.Held == domain.Amount(success)*price {
		fmt.Printf("PASS: Held %d equals user balances %d plus platform %d\n",
			acc.Held, acc.UserBalances, acc.PlatformBalance)
	} else {
		fmt.Printf("FAIL: Accounting out of balance: %+v\n", acc)
	}

	availability, ok, err := redisAdapter.GetAvailability(ctx, listing.ItemID)
	switch {
	case err != nil:
		fmt.Printf("FAIL: Reading Redis availability: %v\n", err)
	case !ok || availability.Available != 0:
		fmt.Printf("FAIL: Expected projected availability 0, got %+v (found=%v)\n", availability, ok)
	default:
		fmt.Printf("PASS: Redis availability projected to 0 at seq %d\n", availability.Seq)
	}
}

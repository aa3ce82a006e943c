//go:build integration

package alpaca

import (
	"context"
	"os"
	"testing"
	"time"

	"grid_trading/internal/market"
	"grid_trading/internal/models"
)

func setupTestEnv(t *testing.T) {
	key := os.Getenv("TEST_APCA_API_KEY_ID")
	secret := os.Getenv("TEST_APCA_API_SECRET_KEY")
	url := os.Getenv("TEST_APCA_API_BASE_URL")

	if key == "" || secret == "" {
		t.Skip("Skipping integration test: TEST_APCA credentials not set")
	}

	// Override standard env vars for the library
	t.Setenv("APCA_API_KEY_ID", key)
	t.Setenv("APCA_API_SECRET_KEY", secret)
	if url != "" {
		t.Setenv("APCA_API_BASE_URL", url)
	} else {
		t.Setenv("APCA_API_BASE_URL", "https://paper-api.alpaca.markets")
	}
}

func TestIntegration_Snapshot(t *testing.T) {
	setupTestEnv(t)
	provider := NewProvider()

	snap, err := provider.GetSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !snap.Ask.IsPositive() {
		t.Errorf("Expected positive ask, got %s", snap.Ask)
	}
}

func TestIntegration_RoundTripPosition(t *testing.T) {
	setupTestEnv(t)
	provider := NewProvider()
	ctx := context.Background()

	clock, err := provider.GetClock(ctx)
	if err != nil {
		t.Fatalf("GetClock failed: %v", err)
	}
	if !clock.IsOpen {
		t.Skip("Market closed; market orders would not fill")
	}

	ticker := "SPY"
	order, err := provider.SetSecurityPosition(ctx, market.PositionChange{Symbol: ticker, Current: 0, New: 1})
	if err != nil {
		t.Fatalf("SetSecurityPosition buy failed: %v", err)
	}
	if order.ClientOrderID == "" {
		t.Errorf("Expected client order id to be set")
	}
	if err := waitForFill(t, provider, order.ID); err != nil {
		t.Fatalf("Buy %s not filled: %v", ticker, err)
	}

	order, err = provider.SetSecurityPosition(ctx, market.PositionChange{Symbol: ticker, Current: 1, New: 0})
	if err != nil {
		t.Fatalf("SetSecurityPosition sell failed: %v", err)
	}
	if err := waitForFill(t, provider, order.ID); err != nil {
		t.Fatalf("Sell %s not filled: %v", ticker, err)
	}
}

func waitForFill(t *testing.T, p *Provider, orderID string) error {
	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Logf("Timeout waiting for fill of %s", orderID)
			return context.DeadlineExceeded
		case <-ticker.C:
			o, err := p.GetOrderStatus(context.Background(), orderID)
			if err != nil {
				continue
			}
			switch o.Status {
			case models.OrderFilled:
				return nil
			case models.OrderCanceled, models.OrderRejected, models.OrderExpired:
				t.Logf("Order %s ended as %s", orderID, o.Status)
				return os.ErrInvalid
			}
		}
	}
}

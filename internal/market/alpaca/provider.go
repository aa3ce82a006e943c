package alpaca

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grid_trading/internal/market"
	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// quotePlaces bounds the float noise of SDK quote prices.
const quotePlaces = 4

// Provider implements market.Broker for Alpaca.
type Provider struct {
	mdClient    *marketdata.Client
	tradeClient *alpaca.Client
	clientID    func() string
}

// Ensure Provider implements the interface
var _ market.Broker = (*Provider)(nil)

// NewProvider returns a new Alpaca provider. Credentials and base URL come from
// the APCA_* environment variables read by the SDK.
func NewProvider() *Provider {
	return &Provider{
		mdClient:    marketdata.NewClient(marketdata.ClientOpts{}),
		tradeClient: alpaca.NewClient(alpaca.ClientOpts{}),
		clientID:    uuid.NewString,
	}
}

// --- Market Data ---

func (p *Provider) GetSnapshot(ctx context.Context, symbol string) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}
	q, err := p.mdClient.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return models.Snapshot{}, err
	}
	if q == nil {
		return models.Snapshot{}, fmt.Errorf("no quote found for %s", symbol)
	}
	return models.Snapshot{
		Bid:       money.Round(decimal.NewFromFloat(q.BidPrice), quotePlaces),
		Ask:       money.Round(decimal.NewFromFloat(q.AskPrice), quotePlaces),
		Timestamp: q.Timestamp,
	}, nil
}

func (p *Provider) GetClock(ctx context.Context) (*models.Clock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := p.tradeClient.GetClock()
	if err != nil {
		return nil, err
	}
	return &models.Clock{
		Timestamp: c.Timestamp,
		IsOpen:    c.IsOpen,
		NextOpen:  c.NextOpen,
		NextClose: c.NextClose,
	}, nil
}

// --- Execution ---

// SetSecurityPosition places the market order that moves the symbol from the
// current to the new position. Each order carries a fresh client order ID.
func (p *Provider) SetSecurityPosition(ctx context.Context, change market.PositionChange) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if change.Qty() == 0 {
		return nil, errors.New("position change with zero quantity")
	}
	qty := decimal.NewFromInt(change.Qty())
	req := alpaca.PlaceOrderRequest{
		Symbol:        strings.ToUpper(change.Symbol),
		Qty:           &qty,
		Side:          alpaca.Side(change.Side()),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: p.clientID(),
	}
	o, err := p.tradeClient.PlaceOrder(req)
	if err != nil {
		return nil, fmt.Errorf("place %s %s x%d: %w", req.Side, req.Symbol, change.Qty(), err)
	}
	return mapOrder(o), nil
}

func (p *Provider) GetOrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, err := p.tradeClient.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

// CancelOrder cancels a specific order by ID.
func (p *Provider) CancelOrder(orderID string) error {
	return p.tradeClient.CancelOrder(orderID)
}

// Helpers

func mapOrder(o *alpaca.Order) *models.Order {
	if o == nil {
		return nil
	}

	var qty decimal.Decimal
	if o.Qty != nil {
		qty = *o.Qty
	}
	var filledAvgPrice decimal.Decimal
	if o.FilledAvgPrice != nil {
		filledAvgPrice = *o.FilledAvgPrice
	}

	return &models.Order{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Qty:            qty,
		FilledQty:      o.FilledQty,
		Side:           string(o.Side),
		Status:         strings.ToLower(o.Status),
		FilledAvgPrice: filledAvgPrice,
		CreatedAt:      o.CreatedAt,
		FilledAt:       o.FilledAt,
	}
}

// Package polymarket talks to the CLOB order gateway that fronts Polymarket.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"st1ne-assistant/internal/execution"

	"github.com/shopspring/decimal"
)

// Client places fill-or-kill limit orders through the gateway.
type Client struct {
	Base  string
	Creds Credentials
	Tick  decimal.Decimal
	Http  *http.Client
	now   func() time.Time
}

// Book is the top of book for a single outcome token.
type Book struct {
	TokenID string
	Bid     float64
	Ask     float64
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookResponse struct {
	AssetID string      `json:"asset_id"`
	Bids    []bookLevel `json:"bids"`
	Asks    []bookLevel `json:"asks"`
}

type orderRequest struct {
	TokenID string `json:"token_id"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Type    string `json:"type"`
}

type orderResponse struct {
	Success      bool   `json:"success"`
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
	ErrorMsg     string `json:"errorMsg"`
}

// NewClient builds a gateway client rounding prices to tickSize.
func NewClient(base string, creds Credentials, tickSize float64, timeout time.Duration) *Client {
	if tickSize <= 0 {
		tickSize = 0.01
	}
	return &Client{
		Base:  strings.TrimRight(base, "/"),
		Creds: creds,
		Tick:  decimal.NewFromFloat(tickSize),
		Http:  &http.Client{Timeout: timeout},
		now:   time.Now,
	}
}

// Book fetches the best bid and ask for tokenID.
func (c *Client) Book(ctx context.Context, tokenID string) (Book, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/book?"+q.Encode(), nil)
	if err != nil {
		return Book{}, err
	}
	resp, err := c.Http.Do(req)
	if err != nil {
		return Book{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Book{}, fmt.Errorf("gateway book status %d", resp.StatusCode)
	}
	var out bookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Book{}, fmt.Errorf("decode book: %w", err)
	}
	book := Book{TokenID: tokenID}
	for _, lvl := range out.Bids {
		if p, err := decimal.NewFromString(lvl.Price); err == nil {
			book.Bid = max(book.Bid, p.InexactFloat64())
		}
	}
	for _, lvl := range out.Asks {
		p, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		if f := p.InexactFloat64(); book.Ask == 0 || f < book.Ask {
			book.Ask = f
		}
	}
	return book, nil
}

// Place buys the intent's outcome token at its limit price.
func (c *Client) Place(ctx context.Context, intent execution.TradeIntent) (execution.Fill, error) {
	if intent.Instrument.TokenID == "" {
		return execution.Fill{}, errors.New("missing token id")
	}
	return c.submit(ctx, "BUY", intent.Market, intent.Instrument.TokenID, intent.Side, intent.Shares, intent.LimitPrice)
}

// Close sells the exit's shares at its limit price.
func (c *Client) Close(ctx context.Context, exit execution.ExitIntent) (execution.Fill, error) {
	if exit.Instrument.TokenID == "" {
		return execution.Fill{}, errors.New("missing token id")
	}
	return c.submit(ctx, "SELL", exit.Market, exit.Instrument.TokenID, exit.Side, exit.Shares, exit.LimitPrice)
}

// RoundPrice snaps price to the tick grid. Buys round up and sells round down so
// the limit never crosses less of the book than requested.
func (c *Client) RoundPrice(price float64, buy bool) decimal.Decimal {
	steps := decimal.NewFromFloat(price).Div(c.Tick)
	if buy {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	return steps.Mul(c.Tick)
}

func (c *Client) submit(ctx context.Context, side, market, tokenID string, execSide execution.Side, shares, price float64) (execution.Fill, error) {
	buy := side == "BUY"
	px := c.RoundPrice(price, buy)
	size := decimal.NewFromFloat(shares).Truncate(2)
	if !px.IsPositive() || px.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return execution.Fill{}, fmt.Errorf("price %s outside (0,1)", px)
	}
	if !size.IsPositive() {
		return execution.Fill{}, fmt.Errorf("size %s must be positive", size)
	}

	body, err := json.Marshal(orderRequest{
		TokenID: tokenID,
		Side:    side,
		Price:   px.String(),
		Size:    size.String(),
		Type:    "FOK",
	})
	if err != nil {
		return execution.Fill{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+"/order", bytes.NewReader(body))
	if err != nil {
		return execution.Fill{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, body)

	resp, err := c.Http.Do(req)
	if err != nil {
		return execution.Fill{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return execution.Fill{}, fmt.Errorf("gateway order status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return execution.Fill{}, fmt.Errorf("decode order: %w", err)
	}
	if !out.Success || out.OrderID == "" {
		return execution.Fill{}, fmt.Errorf("order rejected: %s", out.ErrorMsg)
	}

	filledShares, notional := size, size.Mul(px)
	// BUY: making = USDC paid, taking = shares received; SELL is the reverse.
	making, errM := decimal.NewFromString(out.MakingAmount)
	taking, errT := decimal.NewFromString(out.TakingAmount)
	if errM == nil && errT == nil && making.IsPositive() && taking.IsPositive() {
		if buy {
			notional, filledShares = making, taking
		} else {
			filledShares, notional = making, taking
		}
	}
	fillPrice := px
	if filledShares.IsPositive() {
		fillPrice = notional.Div(filledShares)
	}

	return execution.Fill{
		OrderID:  out.OrderID,
		Market:   market,
		TokenID:  tokenID,
		Side:     execSide,
		Shares:   filledShares.InexactFloat64(),
		Price:    fillPrice.InexactFloat64(),
		Notional: notional.InexactFloat64(),
		Ts:       c.now(),
	}, nil
}

func (c *Client) authorize(req *http.Request, body []byte) {
	if c.Creds.Key == "" {
		return
	}
	stamp, sig := c.Creds.sign(c.now(), req.Method, req.URL.Path, body)
	req.Header.Set("POLY_API_KEY", c.Creds.Key)
	req.Header.Set("POLY_PASSPHRASE", c.Creds.Passphrase)
	req.Header.Set("POLY_TIMESTAMP", stamp)
	req.Header.Set("POLY_SIGNATURE", sig)
}

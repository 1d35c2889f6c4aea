package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/model"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// Binance streams the book ticker and normalizes it into ticks.
type Binance struct {
	wss *ws.WebSocket
}

func NewBinance(ctx context.Context, baseURL string) *Binance {
	if baseURL == "" {
		baseURL = _binanceBaseWsUrl
	}
	return &Binance{
		wss: ws.New(ctx, baseURL),
	}
}

func (f *Binance) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

func (f *Binance) Close() {
	f.wss.Close()
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// Subscribe attaches the symbol's bookTicker stream.
func (f *Binance) Subscribe(ctx context.Context, symbol string) error {
	appendIntoRegister := true
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@bookTicker", strings.ToLower(symbol)),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp binanceSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceBookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// Observe fans the stream into the handler until the context ends.
func (f *Binance) Observe(ctx context.Context, handler Handler) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[binanceBookTicker](m)
				if !ok || resp.Symbol == "" {
					continue
				}

				tick, err := normalizeBookTicker(resp)
				if err != nil {
					logs.Warnf("drop malformed book ticker for %s: %v", resp.Symbol, err)
					continue
				}
				handler(tick)
			}
		}
	}()

	return cancel
}

func normalizeBookTicker(raw binanceBookTicker) (model.Tick, error) {
	bid, err := decimal.NewFromString(raw.BidPrice)
	if err != nil {
		return model.Tick{}, errors.Wrap(err, "parse bid")
	}
	ask, err := decimal.NewFromString(raw.AskPrice)
	if err != nil {
		return model.Tick{}, errors.Wrap(err, "parse ask")
	}
	bidQty, err := decimal.NewFromString(raw.BidQty)
	if err != nil {
		return model.Tick{}, errors.Wrap(err, "parse bid qty")
	}
	askQty, err := decimal.NewFromString(raw.AskQty)
	if err != nil {
		return model.Tick{}, errors.Wrap(err, "parse ask qty")
	}

	return model.Tick{
		Symbol: raw.Symbol,
		Price:  bid.Add(ask).Div(decimal.NewFromInt(2)),
		Bid:    bid,
		Ask:    ask,
		Volume: bidQty.Add(askQty),
		At:     time.Now(),
	}, nil
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/jackmew/ZestExchange/metrics"
	"github.com/jackmew/ZestExchange/models"
)

const (
	defaultBookDepth  = 10
	maxBookDepth      = 100
	defaultTradeLimit = 50
	maxTradeLimit     = 500
)

// PlaceOrderRequest is the body of POST /api/orders.
type PlaceOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// PlaceOrder validates the request and hands it to the symbol's actor.
func (r *Router) PlaceOrder(w http.ResponseWriter, req *http.Request) {
	var body PlaceOrderRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(body.Symbol))
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	side, err := parseSide(body.Side)
	if err != nil {
		metrics.RecordOrderRejected(symbol, "invalid_side")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	orderType, err := parseOrderType(body.Type)
	if err != nil {
		metrics.RecordOrderRejected(symbol, "invalid_type")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	quantity, err := decimal.NewFromString(body.Quantity)
	if err != nil || !quantity.IsPositive() {
		metrics.RecordOrderRejected(symbol, "invalid_quantity")
		respondError(w, http.StatusBadRequest, "Quantity must be a positive number")
		return
	}

	var price decimal.Decimal
	if orderType == models.OrderTypeLimit {
		price, err = decimal.NewFromString(body.Price)
		if err != nil || !price.IsPositive() {
			metrics.RecordOrderRejected(symbol, "invalid_price")
			respondError(w, http.StatusBadRequest, "Price must be a positive number for limit orders")
			return
		}
	}

	actor := r.engine.Actor(symbol)
	if actor == nil {
		respondError(w, http.StatusServiceUnavailable, "Exchange is shutting down")
		return
	}

	resp, err := actor.PlaceOrder(req.Context(), side, orderType, price, quantity)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"order_id": resp.OrderID,
		"status":   resp.Status,
		"message":  resp.Message,
	})
}

// CancelOrder removes a resting order from its symbol's book.
func (r *Router) CancelOrder(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	symbol := strings.ToUpper(vars["symbol"])

	orderID, err := uuid.Parse(vars["order_id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	actor := r.engine.Actor(symbol)
	if actor == nil {
		respondError(w, http.StatusServiceUnavailable, "Exchange is shutting down")
		return
	}

	resp, err := actor.CancelOrder(req.Context(), orderID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusNotFound
	}
	respondJSON(w, status, map[string]interface{}{
		"order_id": resp.OrderID,
		"success":  resp.Success,
		"message":  resp.Message,
	})
}

// GetOrder returns the current state of an order if the symbol's book
// still knows about it.
func (r *Router) GetOrder(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	symbol := strings.ToUpper(vars["symbol"])

	orderID, err := uuid.Parse(vars["order_id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	actor := r.engine.Actor(symbol)
	if actor == nil {
		respondError(w, http.StatusServiceUnavailable, "Exchange is shutting down")
		return
	}

	order, err := actor.GetOrder(req.Context(), orderID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// GetOrderBook returns an aggregated depth snapshot for a symbol.
func (r *Router) GetOrderBook(w http.ResponseWriter, req *http.Request) {
	symbol := strings.ToUpper(mux.Vars(req)["symbol"])

	depth := queryInt(req, "depth", defaultBookDepth)
	if depth < 1 {
		depth = defaultBookDepth
	}
	if depth > maxBookDepth {
		depth = maxBookDepth
	}

	actor := r.engine.Actor(symbol)
	if actor == nil {
		respondError(w, http.StatusServiceUnavailable, "Exchange is shutting down")
		return
	}

	snapshot, err := actor.GetOrderBook(req.Context(), depth)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// GetTrades returns recent executions for a symbol from trade history.
func (r *Router) GetTrades(w http.ResponseWriter, req *http.Request) {
	if r.tradeStore == nil {
		respondError(w, http.StatusServiceUnavailable, "Trade history not available")
		return
	}

	symbol := strings.ToUpper(mux.Vars(req)["symbol"])

	limit := queryInt(req, "limit", defaultTradeLimit)
	if limit < 1 {
		limit = defaultTradeLimit
	}
	if limit > maxTradeLimit {
		limit = maxTradeLimit
	}

	trades, err := r.tradeStore.GetRecentTrades(req.Context(), symbol, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load trades")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"trades": trades,
		"count":  len(trades),
	})
}

// GetMarketStats returns 24h aggregates for a symbol.
func (r *Router) GetMarketStats(w http.ResponseWriter, req *http.Request) {
	if r.tradeStore == nil {
		respondError(w, http.StatusServiceUnavailable, "Trade history not available")
		return
	}

	symbol := strings.ToUpper(mux.Vars(req)["symbol"])

	stats, err := r.tradeStore.Get24hStats(req.Context(), symbol)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load market stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func parseSide(raw string) (models.OrderSide, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return models.OrderSideBuy, nil
	case "sell":
		return models.OrderSideSell, nil
	default:
		return "", errInvalidSide
	}
}

func parseOrderType(raw string) (models.OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "limit":
		return models.OrderTypeLimit, nil
	case "market":
		return models.OrderTypeMarket, nil
	default:
		return "", errInvalidType
	}
}

func queryInt(req *http.Request, key string, fallback int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

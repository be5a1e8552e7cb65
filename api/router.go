package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	gorilla_ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jackmew/ZestExchange/engine"
	"github.com/jackmew/ZestExchange/persistence"
	"github.com/jackmew/ZestExchange/ratelimit"
	"github.com/jackmew/ZestExchange/websocket"
)

// Router maps HTTP requests onto symbol actors. It contains no matching
// logic: request decoding, validation, and response encoding only.
type Router struct {
	router      *mux.Router
	engine      *engine.Router
	tradeStore  *persistence.TradeStore
	wsHub       *websocket.Hub
	wsUpgrader  gorilla_ws.Upgrader
	rateLimiter *ratelimit.TokenBucketLimiter
}

// NewRouter creates the HTTP router. tradeStore and redisClient may be
// nil; the trade-history endpoints and distributed rate limiting
// degrade gracefully without them.
func NewRouter(engineRouter *engine.Router, tradeStore *persistence.TradeStore, wsHub *websocket.Hub, redisClient *redis.Client) *Router {
	r := &Router{
		router:     mux.NewRouter(),
		engine:     engineRouter,
		tradeStore: tradeStore,
		wsHub:      wsHub,
		wsUpgrader: gorilla_ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.SkipPaths = []string{"/healthz", "/metrics", "/stream"}
	r.rateLimiter = ratelimit.NewTokenBucketLimiter(redisClient, limiterConfig)

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.router.Use(r.rateLimiter.Handler)

	// Order management
	r.router.HandleFunc("/api/orders", r.PlaceOrder).Methods("POST")
	r.router.HandleFunc("/api/orders/{symbol}/{order_id}", r.GetOrder).Methods("GET")
	r.router.HandleFunc("/api/orders/{symbol}/{order_id}", r.CancelOrder).Methods("DELETE")

	// Market data
	r.router.HandleFunc("/api/orderbook/{symbol}", r.GetOrderBook).Methods("GET")
	r.router.HandleFunc("/api/trades/{symbol}", r.GetTrades).Methods("GET")
	r.router.HandleFunc("/api/markets/{symbol}/stats", r.GetMarketStats).Methods("GET")

	// WebSocket streaming endpoint
	r.router.HandleFunc("/stream", r.HandleWebSocket).Methods("GET")

	r.router.HandleFunc("/healthz", r.HealthCheck).Methods("GET")
	r.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// HandleWebSocket upgrades the connection and registers the observer
// with the hub.
func (r *Router) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	if r.wsHub == nil {
		http.Error(w, "Streaming not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := r.wsUpgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	r.wsHub.Register(websocket.NewClient(r.wsHub, conn))
}

// HealthCheck reports liveness and the set of active symbols.
func (r *Router) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"symbols":   r.engine.Symbols(),
		"timestamp": time.Now().UTC(),
	})
}

var (
	errInvalidSide = errors.New("Side must be \"buy\" or \"sell\"")
	errInvalidType = errors.New("Type must be \"limit\" or \"market\"")
)

func decodeJSON(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	decoder := json.NewDecoder(req.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

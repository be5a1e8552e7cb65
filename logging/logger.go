package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// ErrorRateLimiter suppresses repeated identical errors so a failing
// collaborator (database, redis) cannot flood the log from the hot path.
type ErrorRateLimiter struct {
	mu            sync.Mutex
	errorCounts   map[string]*errorEntry
	cleanupTicker *time.Ticker
}

type errorEntry struct {
	count      int
	firstSeen  time.Time
	lastLogged time.Time
	suppressed int
}

var (
	rateLimiter     *ErrorRateLimiter
	rateLimitWindow = 1 * time.Minute
	maxErrorsPerMin = 5
)

func NewErrorRateLimiter() *ErrorRateLimiter {
	limiter := &ErrorRateLimiter{
		errorCounts:   make(map[string]*errorEntry),
		cleanupTicker: time.NewTicker(5 * time.Minute),
	}

	go func() {
		for range limiter.cleanupTicker.C {
			limiter.cleanup()
		}
	}()

	return limiter
}

func (rl *ErrorRateLimiter) ShouldLog(errorKey string) (shouldLog bool, suppressedCount int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.errorCounts[errorKey]

	if !exists {
		rl.errorCounts[errorKey] = &errorEntry{
			count:      1,
			firstSeen:  now,
			lastLogged: now,
		}
		return true, 0
	}

	if now.Sub(entry.firstSeen) > rateLimitWindow {
		suppressedCount = entry.suppressed
		rl.errorCounts[errorKey] = &errorEntry{
			count:      1,
			firstSeen:  now,
			lastLogged: now,
		}
		return true, suppressedCount
	}

	entry.count++

	if entry.count <= maxErrorsPerMin {
		entry.lastLogged = now
		return true, 0
	}

	entry.suppressed++
	return false, 0
}

func (rl *ErrorRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, entry := range rl.errorCounts {
		if now.Sub(entry.lastLogged) > 10*time.Minute {
			delete(rl.errorCounts, key)
		}
	}
}

// InitLogger initializes the structured logger with JSON format
func InitLogger() *logrus.Logger {
	log = logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	rateLimiter = NewErrorRateLimiter()

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if log == nil {
		return InitLogger()
	}
	return log
}

// Event types as constants
const (
	EventOrderPlaced    = "order_placed"
	EventOrderCancelled = "order_cancelled"
	EventTradeExecuted  = "trade_executed"
	EventActorStarted   = "actor_started"
	EventPublishError   = "publish_error"
	EventDBError        = "db_error"
	EventDBSuccess      = "db_success"
	EventTradeDropped   = "trade_dropped"
	EventServerStarted  = "server_started"
	EventServerStopped  = "server_stopped"
	EventWebSocket      = "websocket_event"
)

// LogActorStarted logs activation of a symbol actor.
func LogActorStarted(symbol string, queueSize int) {
	GetLogger().WithFields(logrus.Fields{
		"event":      EventActorStarted,
		"symbol":     symbol,
		"queue_size": queueSize,
	}).Info("Symbol actor started")
}

// LogOrderPlaced logs the outcome of a place-order request.
func LogOrderPlaced(orderID, symbol, side, orderType, price, quantity, status string, tradeCount int) {
	GetLogger().WithFields(logrus.Fields{
		"event":       EventOrderPlaced,
		"order_id":    orderID,
		"symbol":      symbol,
		"side":        side,
		"type":        orderType,
		"price":       price,
		"quantity":    quantity,
		"status":      status,
		"trade_count": tradeCount,
	}).Info("Order placed")
}

// LogOrderCancelled logs a successful cancellation.
func LogOrderCancelled(orderID, symbol string) {
	GetLogger().WithFields(logrus.Fields{
		"event":    EventOrderCancelled,
		"order_id": orderID,
		"symbol":   symbol,
	}).Info("Order cancelled")
}

// LogTradeExecuted logs one trade produced by the match loop.
func LogTradeExecuted(tradeID, symbol, price, quantity, takerSide string) {
	GetLogger().WithFields(logrus.Fields{
		"event":      EventTradeExecuted,
		"trade_id":   tradeID,
		"symbol":     symbol,
		"price":      price,
		"quantity":   quantity,
		"taker_side": takerSide,
	}).Info("Trade executed")
}

// LogPublishError logs a failed event publication, rate limited per
// event kind and symbol. Publish failures never fail the caller.
func LogPublishError(eventKind, symbol string, err error) {
	errorKey := fmt.Sprintf("publish:%s:%s", eventKind, symbol)

	shouldLog, suppressedCount := rateLimiterFor().ShouldLog(errorKey)
	if !shouldLog {
		return
	}

	fields := logrus.Fields{
		"event":      EventPublishError,
		"event_kind": eventKind,
		"symbol":     symbol,
		"error":      err.Error(),
	}
	if suppressedCount > 0 {
		fields["suppressed_count"] = suppressedCount
	}

	GetLogger().WithFields(fields).Error("Event publish failed")
}

// LogDBError logs database errors with rate limiting
func LogDBError(operation, table string, err error, details interface{}) {
	errorKey := fmt.Sprintf("%s:%s:%s", operation, table, err.Error())

	shouldLog, suppressedCount := rateLimiterFor().ShouldLog(errorKey)
	if !shouldLog {
		return
	}

	fields := logrus.Fields{
		"event":     EventDBError,
		"operation": operation,
		"table":     table,
		"error":     err.Error(),
		"details":   details,
	}

	if suppressedCount > 0 {
		fields["suppressed_count"] = suppressedCount
		fields["suppressed_msg"] = fmt.Sprintf("%d identical errors were suppressed in the last minute", suppressedCount)
	}

	GetLogger().WithFields(fields).Error("Database error")
}

// LogDBSuccess logs successful database operations
func LogDBSuccess(operation, table string, recordCount int) {
	GetLogger().WithFields(logrus.Fields{
		"event":        EventDBSuccess,
		"operation":    operation,
		"table":        table,
		"record_count": recordCount,
	}).Debug("Database operation successful")
}

// LogTradeDropped logs trades lost to a saturated persistence queue.
func LogTradeDropped(symbol string, count int) {
	GetLogger().WithFields(logrus.Fields{
		"event":  EventTradeDropped,
		"symbol": symbol,
		"count":  count,
	}).Warn("Persistence queue full, trades dropped")
}

// LogServerStarted logs server startup
func LogServerStarted(port int) {
	GetLogger().WithFields(logrus.Fields{
		"event": EventServerStarted,
		"port":  port,
	}).Info("Exchange server started")
}

// LogServerStopped logs server shutdown
func LogServerStopped() {
	GetLogger().WithFields(logrus.Fields{
		"event": EventServerStopped,
	}).Info("Exchange server stopped")
}

// LogWebSocketEvent logs WebSocket connection events
func LogWebSocketEvent(action, clientID string, topics []string) {
	GetLogger().WithFields(logrus.Fields{
		"event":     EventWebSocket,
		"action":    action,
		"client_id": clientID,
		"topics":    topics,
	}).Info("WebSocket event")
}

func rateLimiterFor() *ErrorRateLimiter {
	if rateLimiter == nil {
		rateLimiter = NewErrorRateLimiter()
	}
	return rateLimiter
}

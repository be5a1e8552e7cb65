package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Stream of randomized limit orders against a running exchange. Prices
// walk around a configured mid so roughly the marketable fraction
// crosses the spread and matches.
type driver struct {
	client *http.Client
	log    *logrus.Logger

	target       string
	symbol       string
	midPrice     float64
	spreadPct    float64
	minQty       float64
	maxQty       float64
	marketable   float64
	ordersPerSec int

	total   int
	matched int
	resting int
	lastLog time.Time
}

type placeOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type placeOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func main() {
	target := flag.String("target", "http://localhost:8080", "exchange base URL")
	symbol := flag.String("symbol", "BTC-USDT", "trading symbol")
	rate := flag.Int("rate", 10, "orders per second")
	mid := flag.Float64("mid", 50000, "simulated mid price")
	spread := flag.Float64("spread", 0.1, "spread percent around mid")
	minQty := flag.Float64("min-qty", 0.1, "minimum order quantity")
	maxQty := flag.Float64("max-qty", 10, "maximum order quantity")
	marketable := flag.Float64("marketable", 0.3, "probability an order crosses the spread")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	d := &driver{
		client:       &http.Client{Timeout: 5 * time.Second},
		log:          log,
		target:       strings.TrimRight(*target, "/"),
		symbol:       *symbol,
		midPrice:     *mid,
		spreadPct:    *spread,
		minQty:       *minQty,
		maxQty:       *maxQty,
		marketable:   *marketable,
		ordersPerSec: *rate,
		lastLog:      time.Now(),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	log.WithFields(logrus.Fields{
		"target": d.target,
		"symbol": d.symbol,
		"rate":   d.ordersPerSec,
		"mid":    d.midPrice,
	}).Info("Starting load driver")

	ticker := time.NewTicker(time.Second / time.Duration(d.ordersPerSec))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.WithField("total", d.total).Info("Load driver stopped")
			return
		case <-ticker.C:
			if err := d.placeOrder(); err != nil {
				log.WithError(err).Error("Failed to place order")
				time.Sleep(100 * time.Millisecond)
			}
			d.logStats()
		}
	}
}

func (d *driver) placeOrder() error {
	req := d.generateOrder()

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := d.client.Post(d.target+"/api/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var placed placeOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&placed); err != nil {
		return err
	}

	d.total++
	switch placed.Status {
	case "filled", "partially_filled":
		d.matched++
	default:
		d.resting++
	}
	return nil
}

// generateOrder picks a side at random, then prices the order so that a
// marketable one lands on the far side of mid and a passive one rests
// behind it.
func (d *driver) generateOrder() placeOrderRequest {
	side := "buy"
	if rand.Float64() > 0.5 {
		side = "sell"
	}

	spreadAmount := d.midPrice * d.spreadPct / 100
	crosses := rand.Float64() < d.marketable

	var price float64
	switch {
	case side == "buy" && crosses:
		price = d.midPrice + randomRange(0, spreadAmount*2)
	case side == "buy":
		price = d.midPrice - randomRange(spreadAmount, spreadAmount*3)
	case crosses:
		price = d.midPrice - randomRange(0, spreadAmount*2)
	default:
		price = d.midPrice + randomRange(spreadAmount, spreadAmount*3)
	}

	return placeOrderRequest{
		Symbol:   d.symbol,
		Side:     side,
		Type:     "limit",
		Price:    fmt.Sprintf("%.2f", price),
		Quantity: fmt.Sprintf("%.4f", randomRange(d.minQty, d.maxQty)),
	}
}

func randomRange(min, max float64) float64 {
	return min + rand.Float64()*(max-min)
}

func (d *driver) logStats() {
	elapsed := time.Since(d.lastLog)
	if elapsed < time.Second {
		return
	}

	d.log.WithFields(logrus.Fields{
		"tps":     fmt.Sprintf("%.1f", float64(d.total)/elapsed.Seconds()),
		"total":   d.total,
		"matched": d.matched,
		"resting": d.resting,
	}).Info("Load statistics")

	d.total = 0
	d.matched = 0
	d.resting = 0
	d.lastLog = time.Now()
}

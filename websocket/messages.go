package websocket

// Message is the envelope for every server-to-client frame.
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ClientMessage is what clients send: subscribe/unsubscribe/ping.
type ClientMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic,omitempty"`
}

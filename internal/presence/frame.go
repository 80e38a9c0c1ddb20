package presence

import (
	"github.com/goccy/go-json"
)

// Frame is the server-to-client message written on a realtime channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func EncodeFrame(event string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		data = []byte("null")
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// clientMessage is what clients send: watch/unwatch a post or ping.
type clientMessage struct {
	Type   string `json:"type"`
	PostID string `json:"post_id"`
}

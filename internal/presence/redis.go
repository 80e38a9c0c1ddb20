package presence

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-prolink/internal/logging"
	"backend-prolink/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

const (
	presenceKey      = "prolink:presence"
	broadcastChannel = "prolink:broadcast"
	audienceChannel  = "prolink:audience"
	nodePrefix       = "prolink:node:"
)

// envelope is the pub/sub payload exchanged between nodes.
type envelope struct {
	Origin   string `json:"origin"`
	UserID   string `json:"user_id,omitempty"`
	PostID   string `json:"post_id,omitempty"`
	AuthorID string `json:"author_id,omitempty"`
	Frame    []byte `json:"frame"`
}

// RedisBridge shares presence between nodes: a hash maps each online user
// to the node holding their channel, and pub/sub carries frames to that node.
// Redis calls go through a circuit breaker so an unavailable Redis degrades
// to local-only delivery.
type RedisBridge struct {
	client  *redis.Client
	nodeID  string
	dir     *Directory
	breaker *gobreaker.CircuitBreaker[any]
	timeout time.Duration
}

func NewRedisBridge(client *redis.Client, nodeID string, dir *Directory) *RedisBridge {
	b := &RedisBridge{
		client:  client,
		nodeID:  nodeID,
		dir:     dir,
		timeout: 2 * time.Second,
	}
	b.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "redis-presence",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	dir.SetRemote(b)
	return b
}

func (b *RedisBridge) String() string {
	return "redis-presence-bridge"
}

func nodeChannel(nodeID string) string {
	return nodePrefix + nodeID
}

func nodeFromChannel(ch string) string {
	if !strings.HasPrefix(ch, nodePrefix) {
		return ""
	}
	return ch[len(nodePrefix):]
}

func (b *RedisBridge) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (b *RedisBridge) MarkOnline(ctx context.Context, userID string) {
	err := b.call(ctx, func(ctx context.Context) error {
		return b.client.HSet(ctx, presenceKey, userID, b.nodeID).Err()
	})
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("redis mark online failed")
	}
}

func (b *RedisBridge) MarkOffline(ctx context.Context, userID string) {
	err := b.call(ctx, func(ctx context.Context) error {
		node, err := b.client.HGet(ctx, presenceKey, userID).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if node != b.nodeID {
			return nil
		}
		return b.client.HDel(ctx, presenceKey, userID).Err()
	})
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("redis mark offline failed")
	}
}

// SendToUser forwards frame to the node holding userID. It reports false
// when no other node has the user online.
func (b *RedisBridge) SendToUser(ctx context.Context, userID string, frame []byte) (bool, error) {
	var forwarded bool
	err := b.call(ctx, func(ctx context.Context) error {
		node, err := b.client.HGet(ctx, presenceKey, userID).Result()
		if errors.Is(err, redis.Nil) || node == b.nodeID {
			return nil
		}
		if err != nil {
			return err
		}
		payload, err := json.Marshal(envelope{Origin: b.nodeID, UserID: userID, Frame: frame})
		if err != nil {
			return err
		}
		receivers, err := b.client.Publish(ctx, nodeChannel(node), payload).Result()
		if err != nil {
			return err
		}
		forwarded = receivers > 0
		return nil
	})
	return forwarded, err
}

func (b *RedisBridge) SendBroadcast(ctx context.Context, frame []byte) error {
	return b.publish(ctx, broadcastChannel, envelope{Origin: b.nodeID, Frame: frame})
}

func (b *RedisBridge) SendAudience(ctx context.Context, postID, authorID string, frame []byte) error {
	return b.publish(ctx, audienceChannel, envelope{Origin: b.nodeID, PostID: postID, AuthorID: authorID, Frame: frame})
}

func (b *RedisBridge) publish(ctx context.Context, channel string, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.call(ctx, func(ctx context.Context) error {
		return b.client.Publish(ctx, channel, payload).Err()
	})
}

// Serve subscribes to this node's channel and the shared channels and
// delivers incoming frames to local channels until ctx is done.
func (b *RedisBridge) Serve(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, nodeChannel(b.nodeID), broadcastChannel, audienceChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log := logging.With("redis-bridge")
	log.Info().Str("node_id", b.nodeID).Msg("presence bridge subscribed")

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("presence bridge: subscription closed")
			}
			if err := b.handle(ctx, msg); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("presence bridge message dropped")
			}
		}
	}
}

func (b *RedisBridge) handle(ctx context.Context, msg *redis.Message) error {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		return err
	}
	if env.Origin == b.nodeID {
		return nil
	}
	var err error
	switch {
	case msg.Channel == broadcastChannel:
		_, err = b.dir.deliverAll(ctx, env.Frame)
	case msg.Channel == audienceChannel:
		_, err = b.dir.deliverAudience(ctx, env.PostID, env.AuthorID, env.Frame)
	case nodeFromChannel(msg.Channel) == b.nodeID:
		_, err = b.dir.deliverUser(ctx, env.UserID, env.Frame)
	}
	return err
}

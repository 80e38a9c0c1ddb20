package presence

import (
	"context"
	"time"

	"backend-prolink/internal/logging"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	directoryTimeout = 2 * time.Second
	// retryUnregisterTimeout bounds the background retry of an unregister
	// that timed out while the actor was busy or restarting.
	retryUnregisterTimeout = 30 * time.Second
)

// RegisterRoutes mounts the realtime endpoint. auth must store user_id in
// locals before the upgrade.
func RegisterRoutes(r fiber.Router, dir *Directory, auth fiber.Handler) {
	r.Get("/ws", auth, requireUpgrade, websocket.New(func(c *websocket.Conn) {
		serveConn(dir, c)
	}))
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func serveConn(dir *Directory, c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	log := logging.With("realtime")

	ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
	ch, err := dir.Register(ctx, userID)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("register channel failed")
		return
	}

	stop := make(chan struct{})
	done := writeLoop(ch, stop, func(frame []byte) error {
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			_ = c.Close()
			return err
		}
		return nil
	})

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		handleClientMessage(dir, ch, raw)
	}

	ctx, cancel = context.WithTimeout(context.Background(), directoryTimeout)
	if err := dir.Unregister(ctx, ch); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("unregister channel failed, retrying in background")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), retryUnregisterTimeout)
			defer cancel()
			if err := dir.Unregister(ctx, ch); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("unregister channel retry failed")
			}
		}()
	}
	cancel()
	close(stop)
	<-done
}

// writeLoop writes frames queued on ch until the queue is closed, a write
// fails or stop is closed. The returned channel is closed when it exits.
func writeLoop(ch *Channel, stop <-chan struct{}, write func([]byte) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case frame, ok := <-ch.Send:
				if !ok {
					return
				}
				if err := write(frame); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return done
}

func handleClientMessage(dir *Directory, ch *Channel, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
	defer cancel()
	switch msg.Type {
	case "watch":
		if msg.PostID != "" {
			_ = dir.Watch(ctx, ch, msg.PostID)
		}
	case "unwatch":
		_ = dir.Unwatch(ctx, ch, msg.PostID)
	case "ping":
		if frame, err := EncodeFrame("pong", nil); err == nil {
			_, _ = dir.deliverChannel(ctx, ch, frame)
		}
	}
}

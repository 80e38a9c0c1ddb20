// Package presence tracks which users hold a realtime channel on this node
// and delivers frames to them.
//
// All state is owned by the goroutine running Directory.Serve. Every public
// method sends a closure to that goroutine and waits for it, so callers on
// different request goroutines never touch the maps directly.
package presence

import (
	"context"
	"errors"
	"sync/atomic"

	"backend-prolink/internal/logging"
	"backend-prolink/internal/metrics"
)

const sendBuffer = 64

// Result describes what happened to a single push.
type Result string

const (
	Delivered Result = "delivered"
	Offline   Result = "offline"
	Dropped   Result = "dropped"
	Forwarded Result = "forwarded"
)

var ErrClosed = errors.New("presence: channel closed")

// Channel is one live realtime connection. Frames queued on Send are written
// by the connection's writer goroutine. Send is closed on Unregister.
type Channel struct {
	UserID string
	Send   chan []byte
	id     uint64
}

// Remote forwards pushes for users who are connected to another node.
type Remote interface {
	MarkOnline(ctx context.Context, userID string)
	MarkOffline(ctx context.Context, userID string)
	SendToUser(ctx context.Context, userID string, frame []byte) (bool, error)
	SendBroadcast(ctx context.Context, frame []byte) error
	SendAudience(ctx context.Context, postID, authorID string, frame []byte) error
}

type state struct {
	users    map[string]*Channel
	all      map[*Channel]map[string]struct{}
	watchers map[string]map[*Channel]struct{}
}

type Directory struct {
	mailbox chan func(*state)
	state   *state
	remote  Remote
	nextID  atomic.Uint64
}

func NewDirectory() *Directory {
	return &Directory{
		mailbox: make(chan func(*state), 256),
		state: &state{
			users:    map[string]*Channel{},
			all:      map[*Channel]map[string]struct{}{},
			watchers: map[string]map[*Channel]struct{}{},
		},
	}
}

// SetRemote attaches a cross-node bridge. Call before Serve.
func (d *Directory) SetRemote(r Remote) {
	d.remote = r
}

// Serve runs the actor loop until ctx is done.
func (d *Directory) Serve(ctx context.Context) error {
	log := logging.With("presence")
	log.Info().Msg("presence directory started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("channels", len(d.state.all)).Msg("presence directory stopped")
			return ctx.Err()
		case fn := <-d.mailbox:
			fn(d.state)
		}
	}
}

func (d *Directory) String() string {
	return "presence-directory"
}

func (d *Directory) exec(ctx context.Context, fn func(*state)) error {
	done := make(chan struct{})
	select {
	case d.mailbox <- func(s *state) { fn(s); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// offer queues frame without blocking. A full buffer drops the frame.
func offer(ch *Channel, frame []byte) Result {
	select {
	case ch.Send <- frame:
		return Delivered
	default:
		return Dropped
	}
}

// Register creates a channel for userID and makes it the user's current
// channel, replacing any previous one. A displaced channel stays open until
// its connection unregisters it: it no longer receives PushTo frames but
// still gets broadcasts and the audience frames of posts it watches.
func (d *Directory) Register(ctx context.Context, userID string) (*Channel, error) {
	ch := &Channel{UserID: userID, Send: make(chan []byte, sendBuffer), id: d.nextID.Add(1)}
	err := d.exec(ctx, func(s *state) {
		s.users[userID] = ch
		s.all[ch] = map[string]struct{}{}
		metrics.PresenceChannels.Set(float64(len(s.all)))
	})
	if err != nil {
		return nil, err
	}
	if d.remote != nil {
		d.remote.MarkOnline(ctx, userID)
	}
	logging.Debug().Str("user_id", userID).Uint64("channel", ch.id).Msg("channel registered")
	return ch, nil
}

// Unregister removes ch and closes its Send queue. The user entry is only
// cleared if ch is still the user's current channel.
func (d *Directory) Unregister(ctx context.Context, ch *Channel) error {
	var wasCurrent bool
	err := d.exec(ctx, func(s *state) {
		watched, ok := s.all[ch]
		if !ok {
			return
		}
		for postID := range watched {
			removeWatcher(s, postID, ch)
		}
		delete(s.all, ch)
		if s.users[ch.UserID] == ch {
			delete(s.users, ch.UserID)
			wasCurrent = true
		}
		close(ch.Send)
		metrics.PresenceChannels.Set(float64(len(s.all)))
	})
	if err != nil {
		return err
	}
	if wasCurrent && d.remote != nil {
		d.remote.MarkOffline(ctx, ch.UserID)
	}
	return nil
}

// Lookup reports whether userID has a channel on this node.
func (d *Directory) Lookup(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := d.exec(ctx, func(s *state) {
		_, ok = s.users[userID]
	})
	return ok, err
}

func (d *Directory) Count(ctx context.Context) (int, error) {
	var n int
	err := d.exec(ctx, func(s *state) {
		n = len(s.all)
	})
	return n, err
}

// Watch subscribes ch to like and comment updates of postID.
func (d *Directory) Watch(ctx context.Context, ch *Channel, postID string) error {
	return d.exec(ctx, func(s *state) {
		watched, ok := s.all[ch]
		if !ok {
			return
		}
		watched[postID] = struct{}{}
		if s.watchers[postID] == nil {
			s.watchers[postID] = map[*Channel]struct{}{}
		}
		s.watchers[postID][ch] = struct{}{}
	})
}

func (d *Directory) Unwatch(ctx context.Context, ch *Channel, postID string) error {
	return d.exec(ctx, func(s *state) {
		if watched, ok := s.all[ch]; ok {
			delete(watched, postID)
		}
		removeWatcher(s, postID, ch)
	})
}

func removeWatcher(s *state, postID string, ch *Channel) {
	if w := s.watchers[postID]; w != nil {
		delete(w, ch)
		if len(w) == 0 {
			delete(s.watchers, postID)
		}
	}
}

// PushTo sends frame to the current channel of userID. Users without a local
// channel are looked up on the remote bridge if one is attached. A failing
// bridge is logged and the user treated as offline.
func (d *Directory) PushTo(ctx context.Context, userID string, frame []byte) (Result, error) {
	res, err := d.deliverUser(ctx, userID, frame)
	if err != nil || res != Offline || d.remote == nil {
		return res, err
	}
	forwarded, err := d.remote.SendToUser(ctx, userID, frame)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("remote push failed")
		return Offline, nil
	}
	if forwarded {
		return Forwarded, nil
	}
	return Offline, nil
}

func (d *Directory) deliverUser(ctx context.Context, userID string, frame []byte) (Result, error) {
	res := Offline
	err := d.exec(ctx, func(s *state) {
		if ch, ok := s.users[userID]; ok {
			res = offer(ch, frame)
		}
	})
	return res, err
}

// Broadcast sends frame to every channel on this node and, through the
// remote bridge, on every other node.
func (d *Directory) Broadcast(ctx context.Context, frame []byte) (int, error) {
	n, err := d.deliverAll(ctx, frame)
	if err != nil {
		return n, err
	}
	if d.remote != nil {
		if err := d.remote.SendBroadcast(ctx, frame); err != nil {
			logging.Warn().Err(err).Msg("remote broadcast failed")
		}
	}
	return n, nil
}

func (d *Directory) deliverAll(ctx context.Context, frame []byte) (int, error) {
	var n int
	err := d.exec(ctx, func(s *state) {
		for ch := range s.all {
			if offer(ch, frame) == Delivered {
				n++
			}
		}
	})
	return n, err
}

// PushToAudience sends frame to the post author and to every channel
// watching postID. Each channel receives the frame at most once.
func (d *Directory) PushToAudience(ctx context.Context, postID, authorID string, frame []byte) (int, error) {
	n, err := d.deliverAudience(ctx, postID, authorID, frame)
	if err != nil {
		return n, err
	}
	if d.remote != nil {
		if err := d.remote.SendAudience(ctx, postID, authorID, frame); err != nil {
			logging.Warn().Err(err).Str("post_id", postID).Msg("remote audience push failed")
		}
	}
	return n, nil
}

func (d *Directory) deliverAudience(ctx context.Context, postID, authorID string, frame []byte) (int, error) {
	var n int
	err := d.exec(ctx, func(s *state) {
		seen := map[*Channel]struct{}{}
		if ch, ok := s.users[authorID]; ok {
			seen[ch] = struct{}{}
			if offer(ch, frame) == Delivered {
				n++
			}
		}
		for ch := range s.watchers[postID] {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}
			if offer(ch, frame) == Delivered {
				n++
			}
		}
	})
	return n, err
}

// deliverChannel queues frame on ch if it is still registered.
func (d *Directory) deliverChannel(ctx context.Context, ch *Channel, frame []byte) (Result, error) {
	res := Offline
	err := d.exec(ctx, func(s *state) {
		if _, ok := s.all[ch]; ok {
			res = offer(ch, frame)
		}
	})
	return res, err
}

package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func startNode(t *testing.T, addr, nodeID string) (*Directory, *RedisBridge) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	dir := NewDirectory()
	bridge := NewRedisBridge(client, nodeID, dir)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = dir.Serve(ctx) }()
	go func() { _ = bridge.Serve(ctx) }()
	return dir, bridge
}

func waitSubscribers(t *testing.T, s *miniredis.Miniredis, channel string, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.PubSubNumSub(channel)[channel] >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d subscribers on %s", n, channel)
}

func TestRedisBridgeForwardsToOwningNode(t *testing.T) {
	s := miniredis.RunT(t)
	dirA, _ := startNode(t, s.Addr(), "node-a")
	dirB, _ := startNode(t, s.Addr(), "node-b")
	waitSubscribers(t, s, broadcastChannel, 2)

	ctx := context.Background()
	ch, err := dirB.Register(ctx, "u1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if node := s.HGet(presenceKey, "u1"); node != "node-b" {
		t.Fatalf("expected presence on node-b, got %q", node)
	}

	res, err := dirA.PushTo(ctx, "u1", []byte("remote"))
	if err != nil || res != Forwarded {
		t.Fatalf("expected forwarded push, got %v %v", res, err)
	}
	if got := receive(t, ch); got != "remote" {
		t.Fatalf("unexpected frame %q", got)
	}

	res, _ = dirA.PushTo(ctx, "nobody", []byte("x"))
	if res != Offline {
		t.Fatalf("expected offline, got %v", res)
	}

	_ = dirB.Unregister(ctx, ch)
	if s.Exists(presenceKey) && s.HGet(presenceKey, "u1") != "" {
		t.Fatalf("expected presence cleared")
	}
}

func TestRedisBridgeBroadcastAndAudience(t *testing.T) {
	s := miniredis.RunT(t)
	dirA, _ := startNode(t, s.Addr(), "node-a")
	dirB, _ := startNode(t, s.Addr(), "node-b")
	waitSubscribers(t, s, audienceChannel, 2)

	ctx := context.Background()
	local, _ := dirA.Register(ctx, "local")
	remote, _ := dirB.Register(ctx, "remote")
	_ = dirB.Watch(ctx, remote, "p1")

	if _, err := dirA.Broadcast(ctx, []byte("hello")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	receive(t, local)
	receive(t, remote)
	expectNothing(t, local)

	if _, err := dirA.PushToAudience(ctx, "p1", "local", []byte("like")); err != nil {
		t.Fatalf("audience: %v", err)
	}
	if got := receive(t, local); got != "like" {
		t.Fatalf("author missed audience frame: %q", got)
	}
	if got := receive(t, remote); got != "like" {
		t.Fatalf("remote watcher missed audience frame: %q", got)
	}
}

func TestRedisBridgeDegradesWhenRedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	dir := startDirectory(t)
	NewRedisBridge(client, "node-a", dir)

	ctx := context.Background()
	ch, err := dir.Register(ctx, "u1")
	if err != nil {
		t.Fatalf("register must succeed without redis: %v", err)
	}
	if res, _ := dir.PushTo(ctx, "u1", []byte("x")); res != Delivered {
		t.Fatalf("local delivery must not depend on redis, got %v", res)
	}
	receive(t, ch)
	res, err := dir.PushTo(ctx, "other", []byte("x"))
	if err != nil || res != Offline {
		t.Fatalf("expected offline without error, got %v %v", res, err)
	}
	if _, err := dir.Broadcast(ctx, []byte("x")); err != nil {
		t.Fatalf("broadcast must not fail on redis errors: %v", err)
	}
}

func TestNodeChannelHelpers(t *testing.T) {
	if nodeFromChannel(nodeChannel("abc")) != "abc" {
		t.Fatalf("unexpected node id")
	}
	if nodeFromChannel("bad") != "" {
		t.Fatalf("expected empty node id")
	}
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/juju/clock/testclock"

	"github.com/tommyorndorff/icinga2/internal/bus"
	"github.com/tommyorndorff/icinga2/internal/config"
	"github.com/tommyorndorff/icinga2/internal/events"
	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

type writerHarness struct {
	w   *Writer
	hub *bus.Hub
	clk *testclock.Clock
}

func startWriter(t *testing.T, addr string) *writerHarness {
	t.Helper()
	cfg := config.Default()
	cfg.Redis = redisConfig(t, addr)
	hub := bus.NewHub()
	clk := testclock.NewClock(time.Now())
	w := NewWriter(cfg, hub, clk, logpkg.Discard())
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return &writerHarness{w: w, hub: hub, clk: clk}
}

// flush waits for every task queued so far to complete.
func (h *writerHarness) flush(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	h.w.queue.Submit(func(context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline flush timed out")
	}
}

func (h *writerHarness) refresh(t *testing.T) {
	t.Helper()
	h.w.queue.Submit(h.w.updateSubscriptions)
	h.flush(t)
}

// publish sends an event through the bus and waits until the ingestion loop
// has forwarded it and the pipeline has run it.
func (h *writerHarness) publish(t *testing.T, ev events.Event) {
	t.Helper()
	want := h.w.eventsHandled.Load() + 1
	<-h.hub.Publish(ev)
	deadline := time.Now().Add(5 * time.Second)
	for h.w.eventsHandled.Load() < want {
		if time.Now().After(deadline) {
			t.Fatal("event never reached the publish task")
		}
		time.Sleep(time.Millisecond)
	}
}

func subscribe(t *testing.T, s *miniredis.Miniredis, subscriber, descriptor string) {
	t.Helper()
	s.HSet("icinga:subscription", subscriber, descriptor)
}

func TestPublishScenario(t *testing.T) {
	s := miniredis.RunT(t)
	subscribe(t, s, "sub1", `{"types":["StateChange"]}`)

	h := startWriter(t, s.Addr())
	h.flush(t) // initial connect + subscription load

	h.publish(t, events.Event{"type": events.TypeStateChange, "host": "web1"})

	body, err := s.Get("icinga:event.1")
	if err != nil {
		t.Fatalf("event body missing: %v", err)
	}
	got, err := events.Decode([]byte(body))
	if err != nil {
		t.Fatalf("stored body not decodable: %v", err)
	}
	if got.Type() != events.TypeStateChange || got["host"] != "web1" {
		t.Fatalf("stored body mismatch: %v", got)
	}
	if ttl := s.TTL("icinga:event.1"); ttl != 3600*time.Second {
		t.Fatalf("ttl=%v want 1h", ttl)
	}
	list, err := s.List("icinga:event:sub1")
	if err != nil {
		t.Fatalf("subscriber list: %v", err)
	}
	if len(list) != 1 || list[0] != "1" {
		t.Fatalf("subscriber list=%v want [1]", list)
	}

	// Second event of a type nobody subscribed to: body persisted, no push.
	h.publish(t, events.Event{"type": events.TypeNotification})
	if _, err := s.Get("icinga:event.2"); err != nil {
		t.Fatalf("second body missing: %v", err)
	}
	list, _ = s.List("icinga:event:sub1")
	if len(list) != 1 {
		t.Fatalf("unsubscribed type was pushed: %v", list)
	}
}

func TestSequenceStrictlyIncreasing(t *testing.T) {
	s := miniredis.RunT(t)
	h := startWriter(t, s.Addr())
	h.flush(t)

	const n = 5
	for i := 0; i < n; i++ {
		h.publish(t, events.Event{"type": events.TypeCheckResult, "n": i})
	}
	idx, err := s.Get("icinga:event.idx")
	if err != nil || idx != "5" {
		t.Fatalf("sequence counter=%q err=%v want 5", idx, err)
	}
	for i := 1; i <= n; i++ {
		if !s.Exists(eventKey("icinga:", int64(i))) {
			t.Fatalf("missing body for index %d", i)
		}
	}
}

func TestFanOutToMatchingSubscribersOnly(t *testing.T) {
	s := miniredis.RunT(t)
	subscribe(t, s, "all", `{"types":["StateChange","Notification"]}`)
	subscribe(t, s, "notes", `{"types":["Notification"]}`)
	subscribe(t, s, "none", `{}`)

	h := startWriter(t, s.Addr())
	h.flush(t)

	h.publish(t, events.Event{"type": events.TypeNotification})
	h.publish(t, events.Event{"type": events.TypeStateChange})

	if list, _ := s.List("icinga:event:all"); len(list) != 2 {
		t.Fatalf("all: %v", list)
	}
	if list, _ := s.List("icinga:event:notes"); len(list) != 1 || list[0] != "1" {
		t.Fatalf("notes: %v", list)
	}
	if s.Exists("icinga:event:none") {
		t.Fatal("empty-filter subscriber received a push")
	}
}

func TestRefreshReplacesMappingWholesale(t *testing.T) {
	s := miniredis.RunT(t)
	subscribe(t, s, "sub1", `{"types":["StateChange"]}`)

	h := startWriter(t, s.Addr())
	h.flush(t)

	h.publish(t, events.Event{"type": events.TypeStateChange})
	if list, _ := s.List("icinga:event:sub1"); len(list) != 1 {
		t.Fatalf("precondition: %v", list)
	}

	// Shrink the filter; after refresh no StateChange may be pushed.
	subscribe(t, s, "sub1", `{"types":["Notification"]}`)
	h.refresh(t)

	h.publish(t, events.Event{"type": events.TypeStateChange})
	if list, _ := s.List("icinga:event:sub1"); len(list) != 1 {
		t.Fatalf("stale filter entry survived refresh: %v", list)
	}
}

func TestMalformedRegistryEntrySkipped(t *testing.T) {
	s := miniredis.RunT(t)
	subscribe(t, s, "broken", `{"types":`)
	subscribe(t, s, "good", `{"types":["StateChange"]}`)

	h := startWriter(t, s.Addr())
	h.flush(t)

	h.publish(t, events.Event{"type": events.TypeStateChange})
	if list, _ := s.List("icinga:event:good"); len(list) != 1 {
		t.Fatalf("good subscriber starved by malformed neighbor: %v", list)
	}
	if s.Exists("icinga:event:broken") {
		t.Fatal("malformed subscriber received a push")
	}
}

func TestSubscriberCELFilter(t *testing.T) {
	s := miniredis.RunT(t)
	subscribe(t, s, "webonly", `{"types":["StateChange"],"filter":"event.host == 'web1'"}`)

	h := startWriter(t, s.Addr())
	h.flush(t)

	h.publish(t, events.Event{"type": events.TypeStateChange, "host": "web1"})
	h.publish(t, events.Event{"type": events.TypeStateChange, "host": "db1"})

	list, _ := s.List("icinga:event:webonly")
	if len(list) != 1 || list[0] != "1" {
		t.Fatalf("filter fan-out: %v", list)
	}
	// Both bodies persisted regardless of pushes.
	if !s.Exists("icinga:event.2") {
		t.Fatal("filtered event body missing")
	}
}

func TestDisconnectedEventDroppedSilently(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	h := startWriter(t, addr)
	h.flush(t) // connect attempt fails, state stays disconnected

	h.publish(t, events.Event{"type": events.TypeStateChange})

	if h.w.conn.IsConnected() {
		t.Fatal("writer claims connected against dead server")
	}

	// Bring the store back and reconnect; the dropped event must have
	// allocated nothing.
	m := miniredis.NewMiniRedis()
	if err := m.StartAddr(addr); err != nil {
		t.Fatalf("restart store: %v", err)
	}
	defer m.Close()

	h.w.queue.Submit(h.w.reconnect)
	h.flush(t)
	if !h.w.conn.IsConnected() {
		t.Fatal("reconnect after store recovery failed")
	}
	if m.Exists("icinga:event.idx") {
		t.Fatal("dropped event allocated a sequence index")
	}

	h.publish(t, events.Event{"type": events.TypeStateChange})
	if idx, _ := m.Get("icinga:event.idx"); idx != "1" {
		t.Fatalf("post-recovery publish: idx=%q", idx)
	}
}

func TestTransportFailureTearsDownMidPublish(t *testing.T) {
	s := miniredis.RunT(t)
	h := startWriter(t, s.Addr())
	h.flush(t)
	if !h.w.conn.IsConnected() {
		t.Fatal("precondition: connected")
	}

	s.Close()
	h.publish(t, events.Event{"type": events.TypeStateChange})

	if h.w.conn.IsConnected() {
		t.Fatal("transport failure must tear the connection down")
	}
}

func TestTimerDrivenReconnect(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	h := startWriter(t, addr)
	h.flush(t)
	if h.w.conn.IsConnected() {
		t.Fatal("connected against dead server")
	}

	m := miniredis.NewMiniRedis()
	if err := m.StartAddr(addr); err != nil {
		t.Fatalf("restart store: %v", err)
	}
	defer m.Close()

	// Fire both timers (reconnect + refresh are waiting on the clock).
	if err := h.clk.WaitAdvance(15*time.Second, 5*time.Second, 2); err != nil {
		t.Fatalf("advance clock: %v", err)
	}
	// The timer goroutine submits the reconnect task asynchronously, so a
	// single flush could slip in ahead of it. Flush repeatedly until the
	// reconnect has run; each flush is a full pipeline barrier.
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.flush(t)
		if h.w.conn.IsConnected() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("reconnect timer did not restore the connection")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStopIsClean(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis = redisConfig(t, s.Addr())
	hub := bus.NewHub()
	w := NewWriter(cfg, hub, testclock.NewClock(time.Now()), logpkg.Discard())
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	queueName := w.queueName
	if _, ok := hub.Queue(queueName); !ok {
		t.Fatal("bus queue not registered on start")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := hub.Queue(queueName); ok {
		t.Fatal("bus queue still registered after stop")
	}
	if w.conn.IsConnected() {
		t.Fatal("connection survived stop")
	}
}

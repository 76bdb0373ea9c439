package webui

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"vled/client"
	"vled/register/mock"
	"vled/relay"
	"vled/util"
)

const greeting = "Now connected to Lab 4, Virtual LED..."

type fixture struct {
	web   *WebServer
	relay *relay.Relay
	regs  *mock.Queue
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	util.RedirectLog(t)

	regs := mock.NewQueue()
	t.Cleanup(func() { _ = regs.Close() })

	r, err := relay.New(relay.Config{ReadAddress: 0xFF, WriteAddress: 0xFF, Initial: 5}, regs, regs)
	if err != nil {
		t.Fatalf("relay.New=%v", err)
	}

	web := NewWebServer("127.0.0.1:0", greeting)
	web.ProvideMessageHandler(r)
	web.ProvideStatusProvider(r)
	r.Subscribe(web)

	srv := httptest.NewServer(web.Handler())
	t.Cleanup(func() {
		web.Close()
		srv.Close()
	})

	return &fixture{web: web, relay: r, regs: regs, srv: srv}
}

func (f *fixture) dial(t *testing.T, path string) (*client.Client, <-chan string) {
	t.Helper()
	msgs := make(chan string, 64)
	url := "ws://" + strings.TrimPrefix(f.srv.URL, "http://") + path

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, url, func(text string) { msgs <- text })
	if err != nil {
		t.Fatalf("Dial=%v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, msgs
}

func waitFor(t *testing.T, msgs <-chan string, match func(string) bool) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-msgs:
			if match(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message")
			return ""
		}
	}
}

func TestStaticAssets(t *testing.T) {
	f := newFixture(t)

	res, err := http.Get(f.srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "Virtual LED") {
		t.Fatalf("status=%d body=%q", res.StatusCode, body)
	}

	res, err = http.Get(f.srv.URL + "/script.js")
	if err != nil {
		t.Fatalf("GET script.js: %v", err)
	}
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "/ws/") {
		t.Fatalf("status=%d", res.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	res, err := http.Get(f.srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var got struct {
		Clients int `json:"clients"`
		Relay   struct {
			Frequency int `json:"frequency"`
			Min       int `json:"min"`
			Max       int `json:"max"`
		} `json:"relay"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Clients != 0 || got.Relay.Frequency != 5 || got.Relay.Min != 1 || got.Relay.Max != 10 {
		t.Fatalf("status=%+v", got)
	}

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/status", nil)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", res2.StatusCode)
	}
}

func TestSocket_GreetingThenFrequency(t *testing.T) {
	f := newFixture(t)
	c, msgs := f.dial(t, "/ws/")

	if m := <-msgs; m != greeting {
		t.Fatalf("first message=%q", m)
	}
	if m := <-msgs; !strings.Contains(m, `"frequency":5`) {
		t.Fatalf("snapshot=%q", m)
	}

	if err := c.SendFrequency(7); err != nil {
		t.Fatalf("SendFrequency=%v", err)
	}
	waitFor(t, msgs, func(m string) bool { return strings.Contains(m, `"frequency":7`) })
	if got := f.regs.Peek(0xFF); got != 7*50_000_000 {
		t.Fatalf("counter=%d", got)
	}

	if err := c.SendKey("a"); err != nil {
		t.Fatalf("SendKey=%v", err)
	}
	waitFor(t, msgs, func(m string) bool { return strings.Contains(m, `"frequency":8`) })
}

func TestSocket_RootUpgrade(t *testing.T) {
	f := newFixture(t)
	_, msgs := f.dial(t, "/")

	if m := <-msgs; m != greeting {
		t.Fatalf("first message=%q", m)
	}
}

func TestSocket_BroadcastsReadings(t *testing.T) {
	f := newFixture(t)
	_, a := f.dial(t, "/ws/")
	_, b := f.dial(t, "/ws/")
	waitFor(t, a, func(m string) bool { return m == greeting })
	waitFor(t, b, func(m string) bool { return m == greeting })

	if n := f.web.Clients(); n != 2 {
		t.Fatalf("clients=%d", n)
	}

	f.web.NotifyValue(1)
	f.web.NotifyValue(0)
	for _, msgs := range []<-chan string{a, b} {
		waitFor(t, msgs, func(m string) bool { return m == "1" })
		waitFor(t, msgs, func(m string) bool { return m == "0" })
	}
}

func TestSocket_InvalidMessage(t *testing.T) {
	f := newFixture(t)
	c, msgs := f.dial(t, "/ws/")
	waitFor(t, msgs, func(m string) bool { return m == greeting })

	if err := c.SendText("faster please"); err != nil {
		t.Fatalf("SendText=%v", err)
	}
	waitFor(t, msgs, func(m string) bool { return strings.HasPrefix(m, "error: ") })
	if f.relay.Frequency() != 5 {
		t.Fatalf("frequency=%d", f.relay.Frequency())
	}
}

func TestSocket_RemovedOnClose(t *testing.T) {
	f := newFixture(t)
	c, msgs := f.dial(t, "/ws/")
	waitFor(t, msgs, func(m string) bool { return m == greeting })

	_ = c.Close()
	deadline := time.Now().Add(2 * time.Second)
	for f.web.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("clients=%d", f.web.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSocket_FrequencyChangeReachesEveryClient(t *testing.T) {
	f := newFixture(t)
	_, a := f.dial(t, "/ws/")
	b, bMsgs := f.dial(t, "/ws/")
	waitFor(t, a, func(m string) bool { return m == greeting })
	waitFor(t, bMsgs, func(m string) bool { return m == greeting })

	if err := b.SendFrequency(7); err != nil {
		t.Fatalf("SendFrequency=%v", err)
	}
	waitFor(t, a, func(m string) bool { return strings.Contains(m, `"frequency":7`) })
	waitFor(t, bMsgs, func(m string) bool { return strings.Contains(m, `"frequency":7`) })
}

func TestSocket_SlowClientDoesNotStallOthers(t *testing.T) {
	f := newFixture(t)
	_, msgs := f.dial(t, "/ws/")
	waitFor(t, msgs, func(m string) bool { return m == greeting })

	// a socket whose peer never reads, so its writer blocks on the first frame:
	stuck, peer := net.Pipe()
	defer peer.Close()
	slow := NewSocket(f.web, nil, stuck)
	f.web.appendSocket(slow)
	go slow.writeHandler()

	for i := 0; i < 4*socketQueueSize; i++ {
		f.web.NotifyValue(uint32(i))
	}

	// keep publishing a marker until the healthy client sees it:
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(2 * time.Second)
	f.web.NotifyValue(424242)
wait:
	for {
		select {
		case m := <-msgs:
			if m == "424242" {
				break wait
			}
		case <-tick.C:
			f.web.NotifyValue(424242)
		case <-deadline:
			t.Fatalf("healthy client stalled behind the slow one")
		}
	}

	if slow.dropped.Load() == 0 {
		t.Fatalf("slow socket dropped nothing")
	}
}

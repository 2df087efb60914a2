package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestHub() *Hub {
	return newHub(&Config{guessTimeout: 15 * time.Second}, "192.168.1.10")
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want msgKind
	}{
		{in: "host-connect", want: kindHostConnect},
		{in: "player-join", want: kindPlayerJoin},
		{in: "start-game", want: kindStartGame},
		{in: "round-started", want: kindRoundStarted},
		{in: "buzz-in", want: kindBuzzIn},
		{in: "submit-guess", want: kindSubmitGuess},
		{in: "pass-round", want: kindPassRound},
		{in: "skip-round", want: kindSkipRound},
		{in: "next-round", want: kindNextRound},
		{in: "reset-game", want: kindResetGame},
		{in: "celebrate", want: kindUnknown},
		{in: "", want: kindUnknown},
	}

	for _, tc := range cases {
		if got := parseKind(tc.in); got != tc.want {
			t.Fatalf("parseKind(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDispatch_UnknownTypeAnswersError(t *testing.T) {
	h := newTestHub()
	c := &Client{send: make(chan any, 8)}
	h.clients[c] = true

	h.dispatch(c, ClientMessage{Type: "celebrate"})

	select {
	case msg := <-c.send:
		errMsg, ok := msg.(ErrorMessage)
		if !ok || errMsg.Message != "unknown message type" {
			t.Fatalf("got %+v, want unknown message type error", msg)
		}
	default:
		t.Fatalf("unknown message type should be answered")
	}
}

func TestDispatch_PlayerJoinFallsBackToCookieID(t *testing.T) {
	h := newTestHub()
	c := &Client{send: make(chan any, 8), playerID: "cookie-1"}
	h.clients[c] = true

	h.dispatch(c, ClientMessage{Type: "player-join", Name: "Alice"})

	p := h.session.players.Get("cookie-1")
	if p == nil || p.Name != "Alice" {
		t.Fatalf("join without playerId should register under the cookie id, got %+v", p)
	}
}

func TestDispatch_ExplicitPlayerIDWinsOverCookie(t *testing.T) {
	h := newTestHub()
	c := &Client{send: make(chan any, 8), playerID: "cookie-1"}
	h.clients[c] = true

	h.dispatch(c, ClientMessage{Type: "player-join", Name: "Alice", PlayerID: "app-7"})

	if h.session.players.Get("app-7") == nil {
		t.Fatalf("explicit playerId should be used")
	}
	if h.session.players.Get("cookie-1") != nil {
		t.Fatalf("cookie id must not shadow an explicit playerId")
	}
}

func TestBroadcast_DropsStalledClient(t *testing.T) {
	h := newTestHub()

	// No buffer and no reader, so the first broadcast overflows.
	c := &Client{send: make(chan any)}
	h.clients[c] = true

	h.session.PlayerJoin(c, "Alice", "p1")

	if _, ok := h.clients[c]; ok {
		t.Fatalf("stalled client should have been unlinked")
	}

	// Teardown is deferred: the session must not see the disconnect
	// until the event that stalled the client has finished.
	p := h.session.players.Get("p1")
	if p == nil {
		t.Fatalf("dropped player should be kept for rejoin")
	}
	if !p.Connected {
		t.Fatalf("player disconnected before sweep")
	}

	h.sweep()

	if p.Connected || p.Conn != nil {
		t.Fatalf("swept player should be marked disconnected, got %+v", p)
	}

	// Dropping again must be a no-op, not a double close.
	h.drop(c)
	h.sweep()
}

// A buzzer whose send buffer fills on the buzz-accepted broadcast used
// to be torn down mid-handler, so the your-turn unicast hit a closed
// channel and panicked the process.
func TestHub_SlowBuzzerResolvedAfterEvent(t *testing.T) {
	h := newTestHub()
	step := func(c *Client, msg ClientMessage) {
		h.dispatch(c, msg)
		h.sweep()
	}

	host := &Client{send: make(chan any, 16)}
	h.clients[host] = true

	// Buffer sized to fill exactly when the round starts, so the
	// buzz-accepted broadcast is the first message to overflow.
	c1 := &Client{send: make(chan any, 4)}
	h.clients[c1] = true

	step(host, ClientMessage{Type: "host-connect"})
	step(c1, ClientMessage{Type: "player-join", Name: "Alice", PlayerID: "p1"})
	step(host, ClientMessage{Type: "start-game", TotalRounds: 3})
	step(host, ClientMessage{Type: "round-started", TrackName: "Africa"})

	step(c1, ClientMessage{Type: "buzz-in"})

	if _, ok := h.clients[c1]; ok {
		t.Fatalf("stalled buzzer should have been dropped")
	}

	p := h.session.players.Get("p1")
	if p.Connected || p.Conn != nil {
		t.Fatalf("stalled buzzer should be marked disconnected, got %+v", p)
	}
	if h.session.state != stateRoundEnd {
		t.Fatalf("state = %q, want round-end after sole buzzer dropped", h.session.state)
	}
}

// A non-buzzer stalling on the wrong-guess broadcast used to trigger a
// nested disconnect whose round-end the outer handler then overwrote.
func TestHub_StallDuringWrongGuessEndsRoundCleanly(t *testing.T) {
	h := newTestHub()
	step := func(c *Client, msg ClientMessage) {
		h.dispatch(c, msg)
		h.sweep()
	}

	host := &Client{send: make(chan any, 32)}
	h.clients[host] = true
	c1 := &Client{send: make(chan any, 32)}
	h.clients[c1] = true

	// Sized for both join updates, the two start-game messages, the
	// round start, and the buzz, so the wrong-guess broadcast overflows.
	c2 := &Client{send: make(chan any, 6)}
	h.clients[c2] = true

	step(host, ClientMessage{Type: "host-connect"})
	step(c1, ClientMessage{Type: "player-join", Name: "Alice", PlayerID: "p1"})
	step(c2, ClientMessage{Type: "player-join", Name: "Bob", PlayerID: "p2"})
	step(host, ClientMessage{Type: "start-game", TotalRounds: 3})
	step(host, ClientMessage{Type: "round-started", TrackName: "Africa"})
	step(c1, ClientMessage{Type: "buzz-in"})

	step(c1, ClientMessage{Type: "submit-guess", Text: "wonderwall"})

	if _, ok := h.clients[c2]; ok {
		t.Fatalf("stalled client should have been dropped")
	}
	if h.session.state != stateRoundEnd {
		t.Fatalf("state = %q, want round-end (Alice locked out, Bob gone)", h.session.state)
	}
	if h.session.players.Get("p2").Connected {
		t.Fatalf("stalled client should be marked disconnected")
	}
}

// Events queued behind a drop must be discarded: a rejoin dispatched
// for a swept client would otherwise unicast into its closed channel.
func TestHub_IgnoresQueuedEventsFromSweptClient(t *testing.T) {
	h := newTestHub()
	go h.run()
	defer close(h.inbox)

	host := &Client{send: make(chan any, 16)}
	h.inbox <- register{c: host}

	// Unbuffered with no reader, so the join broadcast stalls it.
	c1 := &Client{send: make(chan any)}
	h.inbox <- register{c: c1}

	h.inbox <- inbound{c: c1, msg: ClientMessage{Type: "player-join", Name: "Alice", PlayerID: "p1"}}
	h.inbox <- inbound{c: c1, msg: ClientMessage{Type: "player-join", Name: "Alice", PlayerID: "p1"}}

	// Processed strictly after the events above; its replies prove the
	// hub survived them.
	h.inbox <- inbound{c: host, msg: ClientMessage{Type: "host-connect"}}

	// Join update, the lobby update from the sweep's disconnect, then
	// the two host-connect replies.
	deadline := time.After(time.Second)
	var got []any
	for len(got) < 4 {
		select {
		case msg := <-host.send:
			got = append(got, msg)
		case <-deadline:
			t.Fatalf("timed out, got %+v", got)
		}
	}

	if _, ok := got[3].(ServerInfoMessage); !ok {
		t.Fatalf("last host message = %+v, want server-info", got[3])
	}
}

func TestHub_HostConnectRoundTrip(t *testing.T) {
	h := newTestHub()
	go h.run()
	defer close(h.inbox)

	c := &Client{send: make(chan any, 8)}
	h.inbox <- register{c: c}
	h.inbox <- inbound{c: c, msg: ClientMessage{Type: "host-connect"}}

	deadline := time.After(time.Second)
	var got []any
	for len(got) < 2 {
		select {
		case msg := <-c.send:
			got = append(got, msg)
		case <-deadline:
			t.Fatalf("timed out waiting for host messages, got %+v", got)
		}
	}

	if _, ok := got[0].(LobbyUpdateMessage); !ok {
		t.Fatalf("first host message = %+v, want lobby-update", got[0])
	}
	info, ok := got[1].(ServerInfoMessage)
	if !ok || info.LanIP != "192.168.1.10" {
		t.Fatalf("second host message = %+v, want server-info with lan ip", got[1])
	}
}

func TestScheduleTimeout_PostsToInbox(t *testing.T) {
	h := newTestHub()

	h.scheduleTimeout(time.Millisecond, 7)

	select {
	case ev := <-h.inbox:
		fired, ok := ev.(timerExpired)
		if !ok || fired.gen != 7 {
			t.Fatalf("got %+v, want timerExpired gen 7", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}
}

func TestGetOrSetPlayerID(t *testing.T) {
	t.Run("existing cookie wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/quiz/ws", nil)
		r.AddCookie(&http.Cookie{Name: playerCookieName, Value: "abc123"})

		if got := getOrSetPlayerID(httptest.NewRecorder(), r); got != "abc123" {
			t.Fatalf("got %q, want abc123", got)
		}
	})

	t.Run("missing cookie is minted", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/quiz/ws", nil)

		id := getOrSetPlayerID(w, r)
		if id == "" {
			t.Fatalf("expected a generated id")
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != playerCookieName || cookies[0].Value != id {
			t.Fatalf("cookie not set to the minted id: %+v", cookies)
		}
	})
}

func TestQRHandler_ServesPNG(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/quiz/qr", nil)

	qrHandler(w, r, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("content-type = %q, want image/png", got)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("empty QR body")
	}
}

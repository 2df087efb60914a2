// Guessthesong buzzer quiz
//
// A host app plays short clips and reports each track to the server;
// players race to buzz in from their phones and guess the title. The
// first valid buzz wins the round's guessing slot, worth up to 1000
// points decaying with elapsed time, and a wrong answer or timeout locks
// that player out for the rest of the round.
//
// Features:
// - Single authoritative session per process, no database
// - One privileged host connection drives rounds; players buzz and guess
// - Buzz race arbitration: exactly one winner, losers get told why
// - 15-second answer clock, resolved server-side on expiry
// - Hard mode deducts 500 points on wrong answers, clamped at zero
// - Players identified by a durable id (or cookie), so a dropped phone
//   can rejoin mid-round without losing its score
// - In-browser QR to share the join URL, backed by go-qrcode

package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string // cookie identity, used when player-join omits playerId
}

// Send queues a message without blocking the hub loop. A full buffer
// means the peer has stalled; the caller decides whether to drop them.
func (c *Client) Send(msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub events, processed one at a time by a single goroutine. All session
// mutation happens on that goroutine, which is what serializes the buzz
// race.
type event interface{ isEvent() }

type register struct{ c *Client }

type unregister struct{ c *Client }

type inbound struct {
	c   *Client
	msg ClientMessage
}

type timerExpired struct{ gen int }

func (register) isEvent()     {}
func (unregister) isEvent()   {}
func (inbound) isEvent()      {}
func (timerExpired) isEvent() {}

type Hub struct {
	cfg     *Config
	inbox   chan event
	clients map[*Client]bool
	stale   []*Client
	session *Session
}

func newHub(cfg *Config, addr string) *Hub {
	h := &Hub{
		cfg:     cfg,
		inbox:   make(chan event, 64),
		clients: make(map[*Client]bool),
	}
	h.session = newSession(cfg, addr, h.broadcast)
	h.session.schedule = h.scheduleTimeout
	return h
}

func (h *Hub) run() {
	for ev := range h.inbox {
		switch ev := ev.(type) {
		case register:
			h.clients[ev.c] = true
			logf(h.cfg, "QUIZ: Client connected")

		case unregister:
			h.drop(ev.c)

		case inbound:
			// A dropped client can still have events queued behind the
			// drop; its channel is closed, so they must not reach the
			// session.
			if h.clients[ev.c] {
				h.dispatch(ev.c, ev.msg)
			}

		case timerExpired:
			h.session.GuessTimeout(ev.gen)
		}

		h.sweep()
	}
}

func (h *Hub) dispatch(c *Client, msg ClientMessage) {
	s := h.session

	switch parseKind(msg.Type) {
	case kindHostConnect:
		s.HostConnect(c)

	case kindPlayerJoin:
		playerID := msg.PlayerID
		if playerID == "" {
			playerID = c.playerID
		}
		s.PlayerJoin(c, msg.Name, playerID)

	case kindStartGame:
		s.StartGame(c, msg.TotalRounds, msg.HardMode)

	case kindRoundStarted:
		s.RoundStarted(c, Song{
			TrackName: msg.TrackName,
			Artists:   msg.Artists,
			TrackURI:  msg.TrackURI,
			AlbumArt:  msg.AlbumArt,
		})

	case kindBuzzIn:
		s.BuzzIn(c)

	case kindSubmitGuess:
		s.SubmitGuess(c, msg.Text)

	case kindPassRound:
		s.PassRound(c)

	case kindSkipRound:
		s.SkipRound(c)

	case kindNextRound:
		s.NextRound(c)

	case kindResetGame:
		s.ResetGame(c)

	case kindUnknown:
		c.Send(errorMessage("unknown message type"))
	}
}

// broadcast runs inside session handlers, so it must not mutate the
// session or close channels the running handler may still unicast into.
// Stalled clients are only unlinked from the map here; teardown waits
// for sweep, after the current event has fully resolved.
func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		if !c.Send(msg) {
			delete(h.clients, c)
			h.stale = append(h.stale, c)
		}
	}
}

// sweep tears down clients stalled during the last event. Runs between
// events on the hub goroutine, so the session disconnects are never
// reentrant. A disconnect here can stall further clients mid-broadcast,
// which just extends the queue.
func (h *Hub) sweep() {
	for len(h.stale) > 0 {
		c := h.stale[0]
		h.stale = h.stale[1:]

		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}

		h.session.Disconnect(c)
		logf(h.cfg, "QUIZ: Dropped stalled client")
	}
}

// drop is idempotent: a client already removed (slow broadcast, then the
// read pump noticing the closed socket) is a no-op the second time.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}

	h.session.Disconnect(c)
}

func (h *Hub) scheduleTimeout(d time.Duration, gen int) func() {
	t := time.AfterFunc(d, func() {
		h.inbox <- timerExpired{gen: gen}
	})
	return func() { t.Stop() }
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "guessthesong_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "QUIZ: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		h.inbox <- register{c: client}

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.inbox <- unregister{c: c}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		h.inbox <- inbound{c: c, msg: msg}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code for the join URL, for phones on the
// same network.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /quiz/qr; strip the trailing "/qr" to get the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func quizPageHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(quizHTML))
	}
}

// registerQuizGame sets up routes so that:
//   - $path        → HTML player client
//   - $path/ws     → WebSocket for the session
//   - $path/qr     → PNG QR code for the join URL
func registerQuizGame(cfg *Config, path string, mux *httprouter.Router) {
	hub := newHub(cfg, lanIP())
	go hub.run()

	mux.GET(cfg.prefix+path, quizPageHandler(cfg))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, hub))

	mux.GET(cfg.prefix+path+"/qr", qrHandler)
}

// Simple HTML player client for quick testing; the full host app lives
// elsewhere and speaks the same protocol.
const quizHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>guessthesong</title>
<style>
  body { font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; }
  h1 { margin-bottom: 0.5rem; }
  #status { margin-bottom: 1rem; font-size: 0.9rem; }
  #buzz { font-size: 2rem; padding: 1rem 3rem; }
  #guessbox { display: none; margin-top: 1rem; }
  #scores { margin-top: 1rem; padding: 0; list-style: none; }
  #scores li { padding: 0.25rem 0; border-bottom: 1px solid #ddd; }
</style>
</head>
<body>
<h1>guessthesong</h1>
<div id="status">Connecting…</div>
<button id="buzz" disabled>BUZZ</button>
<div id="guessbox">
  <input id="guess" placeholder="Song title…">
  <button id="submit">Guess</button>
  <button id="pass">Pass</button>
</div>
<ul id="scores"></ul>

<script>
(function() {
  const statusEl = document.getElementById('status');
  const scoresEl = document.getElementById('scores');
  const buzzEl = document.getElementById('buzz');
  const guessBox = document.getElementById('guessbox');
  const guessEl = document.getElementById('guess');

  let playerId = localStorage.getItem('guessthesong_player');
  if (!playerId) {
    playerId = Math.random().toString(36).slice(2) + Date.now().toString(36);
    localStorage.setItem('guessthesong_player', playerId);
  }

  const proto = (location.protocol === 'https:') ? 'wss://' : 'ws://';
  const wsPath = location.pathname.replace(/\/$/, '') + '/ws';
  const ws = new WebSocket(proto + location.host + wsPath);

  function renderScores(players) {
    scoresEl.innerHTML = '';
    (players || []).forEach(function(p) {
      const li = document.createElement('li');
      li.textContent = p.name + ' — ' + p.score;
      scoresEl.appendChild(li);
    });
  }

  ws.onopen = function() {
    statusEl.textContent = 'Connected.';
    const name = prompt('Enter your name:') || '';
    if (name) {
      ws.send(JSON.stringify({ type: 'player-join', name: name, playerId: playerId }));
    }
  };

  ws.onmessage = function(event) {
    const msg = JSON.parse(event.data);
    switch (msg.type) {
    case 'lobby-update':
      renderScores(msg.players);
      break;
    case 'game-started':
      statusEl.textContent = 'Game on: ' + msg.totalRounds + ' rounds.';
      break;
    case 'await-round':
      statusEl.textContent = 'Waiting for the next round…';
      buzzEl.disabled = true;
      guessBox.style.display = 'none';
      break;
    case 'round-started':
      statusEl.textContent = 'Round ' + msg.roundNumber + ' — listen and buzz!';
      buzzEl.disabled = false;
      guessBox.style.display = 'none';
      break;
    case 'buzz-accepted':
      statusEl.textContent = msg.playerName + ' buzzed in for ' + msg.points + ' points!';
      buzzEl.disabled = true;
      break;
    case 'your-turn':
      statusEl.textContent = 'Your turn! ' + (msg.timeoutMs / 1000) + 's to answer.';
      guessBox.style.display = 'block';
      guessEl.focus();
      break;
    case 'wrong-guess':
      statusEl.textContent = msg.playerName + ' guessed wrong.';
      guessBox.style.display = 'none';
      buzzEl.disabled = false;
      break;
    case 'drink-prompt':
      statusEl.textContent = msg.message;
      break;
    case 'round-over':
      statusEl.textContent = msg.winner
        ? msg.winner + ' wins the round! It was "' + msg.song.trackName + '".'
        : 'Round over — it was "' + (msg.song ? msg.song.trackName : '?') + '".';
      buzzEl.disabled = true;
      guessBox.style.display = 'none';
      renderScores(msg.scores);
      break;
    case 'game-over':
      statusEl.textContent = 'Game over!';
      renderScores(msg.scores);
      break;
    case 'game-reset':
      statusEl.textContent = 'Back to the lobby.';
      buzzEl.disabled = true;
      break;
    case 'rejoin-state':
      statusEl.textContent = 'Rejoined (round ' + msg.roundNumber + '/' + msg.totalRounds + ').';
      buzzEl.disabled = (msg.phase !== 'round-active') || msg.lockedOut;
      renderScores(msg.scores);
      break;
    case 'error':
      statusEl.textContent = msg.message;
      break;
    }
  };

  ws.onclose = function() {
    statusEl.textContent = 'Disconnected.';
    buzzEl.disabled = true;
  };

  buzzEl.onclick = function() {
    ws.send(JSON.stringify({ type: 'buzz-in' }));
  };

  document.getElementById('submit').onclick = function() {
    ws.send(JSON.stringify({ type: 'submit-guess', text: guessEl.value }));
    guessEl.value = '';
    guessBox.style.display = 'none';
  };

  document.getElementById('pass').onclick = function() {
    ws.send(JSON.stringify({ type: 'pass-round' }));
    buzzEl.disabled = true;
  };
})();
</script>
</body>
</html>
`

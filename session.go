package main

import (
	"math"
	"time"
)

type gameState string

const (
	stateLobby       gameState = "lobby"
	statePlaying     gameState = "playing"
	stateRoundActive gameState = "round-active"
	stateGuessing    gameState = "guessing"
	stateRoundEnd    gameState = "round-end"
	stateGameOver    gameState = "game-over"
)

const (
	defaultRounds = 10
	maxRounds     = 30

	// Buzz value decays linearly from 1000 at round start to the 100
	// floor at buzzWindow; the value is locked in at buzz time.
	maxBuzzPoints = 1000
	minBuzzPoints = 100
	buzzWindow    = 30 * time.Second

	hardModePenalty = 500
)

type Song struct {
	TrackName string   `json:"trackName"`
	Artists   []string `json:"artists"`
	TrackURI  string   `json:"trackUri"`
	AlbumArt  string   `json:"albumArt"`
}

// Session is the authoritative game state. Every method must be called
// from a single goroutine (the hub loop); handlers run to completion
// before the next inbound event, which is what makes the buzz race safe
// without any further locking.
type Session struct {
	cfg   *Config
	lanIP string

	state       gameState
	host        Conn
	players     *Registry
	roundNumber int
	totalRounds int
	hardMode    bool
	currentSong *Song

	roundStartedAt time.Time
	buzzedPlayer   string
	buzzPoints     int
	lockedOut      map[string]bool

	// At most one answer timer is live at a time; cancelTimer stops the
	// pending one and timerGen invalidates any fire already in flight.
	timerGen    int
	cancelTimer func()

	broadcast func(msg any)
	now       func() time.Time
	schedule  func(d time.Duration, gen int) func()
}

func newSession(cfg *Config, lanIP string, broadcast func(msg any)) *Session {
	return &Session{
		cfg:         cfg,
		lanIP:       lanIP,
		state:       stateLobby,
		players:     newRegistry(),
		totalRounds: defaultRounds,
		lockedOut:   make(map[string]bool),
		broadcast:   broadcast,
		now:         time.Now,
	}
}

// HostConnect registers the sender as the single privileged host. The
// last connection to announce itself wins the role.
func (s *Session) HostConnect(c Conn) {
	s.host = c
	logf(s.cfg, "QUIZ: Host connected")

	c.Send(LobbyUpdateMessage{Type: "lobby-update", Players: s.players.Scoreboard()})
	c.Send(ServerInfoMessage{Type: "server-info", LanIP: s.lanIP})
}

func (s *Session) PlayerJoin(c Conn, name, playerID string) {
	trimmed := trimName(name)
	if trimmed == "" {
		c.Send(errorMessage("Invalid name"))
		return
	}
	if playerID == "" {
		c.Send(errorMessage("Invalid player ID"))
		return
	}

	if existing := s.players.Get(playerID); existing != nil {
		existing.Conn = c
		existing.Connected = true
		existing.Name = trimmed
		logf(s.cfg, "QUIZ: Player %q rejoined", trimmed)

		c.Send(RejoinStateMessage{
			Type:        "rejoin-state",
			Phase:       string(s.state),
			RoundNumber: s.roundNumber,
			TotalRounds: s.totalRounds,
			Scores:      s.players.Scoreboard(),
			LockedOut:   s.lockedOut[playerID],
		})

		s.broadcast(LobbyUpdateMessage{Type: "lobby-update", Players: s.players.Scoreboard()})
		return
	}

	if s.state != stateLobby {
		c.Send(errorMessage("Game already started"))
		return
	}

	s.players.Add(playerID, trimmed, c)
	logf(s.cfg, "QUIZ: Player %q joined", trimmed)

	s.broadcast(LobbyUpdateMessage{Type: "lobby-update", Players: s.players.Scoreboard()})
}

func (s *Session) StartGame(c Conn, totalRounds int, hardMode bool) {
	if c != s.host {
		logf(s.cfg, "QUIZ: Ignored start-game from non-host")
		return
	}
	if s.state != stateLobby {
		return
	}

	if totalRounds == 0 {
		totalRounds = defaultRounds
	}
	s.totalRounds = min(maxRounds, max(1, totalRounds))
	s.hardMode = hardMode
	s.state = statePlaying
	s.roundNumber = 0
	s.players.ResetScores()

	s.broadcast(GameStartedMessage{Type: "game-started", TotalRounds: s.totalRounds})
	s.broadcast(AwaitRoundMessage{Type: "await-round"})
	logf(s.cfg, "QUIZ: Game started with %d rounds for %d players (hard mode: %t)",
		s.totalRounds, s.players.ConnectedCount(), s.hardMode)
}

// RoundStarted is accepted in any state so the host can replay a track
// or recover a stuck round.
func (s *Session) RoundStarted(c Conn, song Song) {
	if c != s.host {
		logf(s.cfg, "QUIZ: Ignored round-started from non-host")
		return
	}

	s.cancelAnswerTimer()
	s.roundNumber++
	s.currentSong = &song
	s.buzzedPlayer = ""
	s.lockedOut = make(map[string]bool)
	s.state = stateRoundActive
	s.roundStartedAt = s.now()

	s.broadcast(RoundStartedMessage{Type: "round-started", RoundNumber: s.roundNumber})
	logf(s.cfg, "QUIZ: Round %d started: %s", s.roundNumber, song.TrackName)
}

// BuzzIn arbitrates the buzz race. Only the first buzz can move the
// state off round-active; every later attempt gets an explicit error so
// the losing client can show a distinct outcome instead of a stuck
// button.
func (s *Session) BuzzIn(c Conn) {
	playerID, player := s.players.ByConn(c)
	if player == nil {
		return
	}

	if s.state != stateRoundActive {
		c.Send(errorMessage("Cannot buzz in right now"))
		return
	}
	if s.lockedOut[playerID] {
		c.Send(errorMessage("You are locked out this round"))
		return
	}

	s.buzzedPlayer = playerID
	s.state = stateGuessing
	s.buzzPoints = buzzValue(s.now().Sub(s.roundStartedAt))

	s.broadcast(BuzzAcceptedMessage{Type: "buzz-accepted", PlayerName: player.Name, Points: s.buzzPoints})
	c.Send(YourTurnMessage{Type: "your-turn", TimeoutMs: s.cfg.guessTimeout.Milliseconds()})

	s.armAnswerTimer()
	logf(s.cfg, "QUIZ: %s buzzed in for %d points", player.Name, s.buzzPoints)
}

func buzzValue(elapsed time.Duration) int {
	decayed := float64(maxBuzzPoints) - float64(elapsed.Milliseconds())/float64(buzzWindow.Milliseconds())*float64(maxBuzzPoints-minBuzzPoints)
	points := int(math.Round(decayed))
	if points < minBuzzPoints {
		points = minBuzzPoints
	}
	return points
}

func (s *Session) SubmitGuess(c Conn, text string) {
	playerID, player := s.players.ByConn(c)
	if player == nil {
		return
	}

	if s.state != stateGuessing || s.buzzedPlayer != playerID || text == "" {
		return
	}

	s.cancelAnswerTimer()

	if isCorrectGuess(text, s.currentSong.TrackName) {
		player.Score += s.buzzPoints
		logf(s.cfg, "QUIZ: %s guessed correctly (+%d pts)", player.Name, s.buzzPoints)
		s.endRound(player.Name)
		return
	}

	logf(s.cfg, "QUIZ: %s guessed wrong: %q", player.Name, text)
	s.resolveWrong(playerID, player, true, true)
}

// GuessTimeout fires when the answer clock expires. Stale fires from an
// already-cancelled timer carry an old generation and are dropped, so
// cancellation stays idempotent even after the timer has gone off.
func (s *Session) GuessTimeout(gen int) {
	if gen != s.timerGen {
		return
	}
	s.cancelTimer = nil

	if s.state != stateGuessing || s.buzzedPlayer == "" {
		return
	}

	playerID := s.buzzedPlayer
	player := s.players.Get(playerID)
	logf(s.cfg, "QUIZ: %s ran out of time", player.Name)
	s.resolveWrong(playerID, player, true, true)
}

// resolveWrong locks the buzzer out and returns the round to the open
// state. Timeout takes exactly the same branch as an explicit wrong
// guess; a disconnect resolution skips the penalty and the prompt.
func (s *Session) resolveWrong(playerID string, player *Player, penalize, prompt bool) {
	if s.hardMode && penalize {
		player.Score = max(0, player.Score-hardModePenalty)
	}

	s.broadcast(WrongGuessMessage{Type: "wrong-guess", PlayerName: player.Name})
	if prompt && player.Conn != nil {
		player.Conn.Send(DrinkPromptMessage{Type: "drink-prompt", Message: "Take a drink! 🍺"})
	}

	s.lockedOut[playerID] = true
	s.buzzedPlayer = ""
	s.state = stateRoundActive

	s.maybeAutoSkip()
}

// maybeAutoSkip ends the round with no winner once no connected player
// can buzz anymore, so a round can never get stuck waiting on an
// exhausted field.
func (s *Session) maybeAutoSkip() {
	if s.players.EligibleCount(s.lockedOut) == 0 {
		logf(s.cfg, "QUIZ: All players locked out, auto-skipping round")
		s.endRound("")
	}
}

func (s *Session) PassRound(c Conn) {
	playerID, player := s.players.ByConn(c)
	if player == nil {
		return
	}

	if s.state != stateRoundActive || s.lockedOut[playerID] {
		return
	}

	s.lockedOut[playerID] = true
	logf(s.cfg, "QUIZ: %s passed", player.Name)

	s.maybeAutoSkip()
}

func (s *Session) SkipRound(c Conn) {
	if c != s.host {
		logf(s.cfg, "QUIZ: Ignored skip-round from non-host")
		return
	}

	logf(s.cfg, "QUIZ: Host skipped round")
	s.endRound("")
}

func (s *Session) NextRound(c Conn) {
	if c != s.host {
		logf(s.cfg, "QUIZ: Ignored next-round from non-host")
		return
	}
	if s.state != stateRoundEnd {
		return
	}

	if s.roundNumber >= s.totalRounds {
		s.state = stateGameOver
		s.broadcast(GameOverMessage{Type: "game-over", Scores: s.players.Scoreboard()})
		logf(s.cfg, "QUIZ: Game over")
		return
	}

	s.state = statePlaying
	s.broadcast(AwaitRoundMessage{Type: "await-round"})
}

// ResetGame returns to the lobby, clearing round and score state while
// preserving player identities.
func (s *Session) ResetGame(c Conn) {
	if c != s.host {
		logf(s.cfg, "QUIZ: Ignored reset-game from non-host")
		return
	}

	s.cancelAnswerTimer()
	s.players.ResetScores()
	s.roundNumber = 0
	s.currentSong = nil
	s.buzzedPlayer = ""
	s.lockedOut = make(map[string]bool)
	s.state = stateLobby

	s.broadcast(GameResetMessage{Type: "game-reset"})
	s.broadcast(LobbyUpdateMessage{Type: "lobby-update", Players: s.players.Scoreboard()})
	logf(s.cfg, "QUIZ: Game reset")
}

// Disconnect drops host authority if the host vanished, and marks the
// owning player disconnected while keeping their score for a rejoin. A
// connection can hold both roles at once, so clearing the host must not
// skip the player handling. A buzzer that disconnects mid-answer
// resolves like a wrong guess, minus the hard-mode penalty.
func (s *Session) Disconnect(c Conn) {
	if c == s.host {
		s.host = nil
		logf(s.cfg, "QUIZ: Host disconnected")
	}

	playerID, player := s.players.ByConn(c)
	if player == nil {
		return
	}

	player.Connected = false
	player.Conn = nil
	logf(s.cfg, "QUIZ: Player %q disconnected (kept)", player.Name)

	if s.state == stateLobby {
		s.broadcast(LobbyUpdateMessage{Type: "lobby-update", Players: s.players.Scoreboard()})
	}

	if s.buzzedPlayer == playerID {
		s.cancelAnswerTimer()
		s.resolveWrong(playerID, player, false, false)
	} else if s.state == stateRoundActive {
		// The last eligible player leaving must not strand the round.
		s.maybeAutoSkip()
	}
}

func (s *Session) endRound(winner string) {
	s.cancelAnswerTimer()
	s.state = stateRoundEnd
	s.buzzedPlayer = ""

	var winnerName *string
	if winner != "" {
		winnerName = &winner
	}

	s.broadcast(RoundOverMessage{
		Type:   "round-over",
		Song:   s.currentSong,
		Scores: s.players.Scoreboard(),
		Winner: winnerName,
	})
}

func (s *Session) armAnswerTimer() {
	s.cancelAnswerTimer()
	s.timerGen++
	if s.schedule != nil {
		s.cancelTimer = s.schedule(s.cfg.guessTimeout, s.timerGen)
	}
}

// cancelAnswerTimer is safe to call with no timer pending or after the
// timer has already fired.
func (s *Session) cancelAnswerTimer() {
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
	s.timerGen++
}

package main

// The wire protocol is JSON over a single websocket per client. Every
// message, in either direction, carries a "type" field; inbound payloads
// are decoded into one ClientMessage struct and dispatched by kind, so an
// unknown kind is answered explicitly instead of vanishing.

type msgKind int

const (
	kindUnknown msgKind = iota
	kindHostConnect
	kindPlayerJoin
	kindStartGame
	kindRoundStarted
	kindBuzzIn
	kindSubmitGuess
	kindPassRound
	kindSkipRound
	kindNextRound
	kindResetGame
)

func parseKind(s string) msgKind {
	switch s {
	case "host-connect":
		return kindHostConnect
	case "player-join":
		return kindPlayerJoin
	case "start-game":
		return kindStartGame
	case "round-started":
		return kindRoundStarted
	case "buzz-in":
		return kindBuzzIn
	case "submit-guess":
		return kindSubmitGuess
	case "pass-round":
		return kindPassRound
	case "skip-round":
		return kindSkipRound
	case "next-round":
		return kindNextRound
	case "reset-game":
		return kindResetGame
	default:
		return kindUnknown
	}
}

// Messages coming from clients
type ClientMessage struct {
	Type        string   `json:"type"`                  // see parseKind
	Name        string   `json:"name,omitempty"`        // player-join
	PlayerID    string   `json:"playerId,omitempty"`    // player-join
	TotalRounds int      `json:"totalRounds,omitempty"` // start-game
	HardMode    bool     `json:"hardMode,omitempty"`    // start-game
	TrackName   string   `json:"trackName,omitempty"`   // round-started
	Artists     []string `json:"artists,omitempty"`     // round-started
	TrackURI    string   `json:"trackUri,omitempty"`    // round-started
	AlbumArt    string   `json:"albumArt,omitempty"`    // round-started
	Text        string   `json:"text,omitempty"`        // submit-guess
}

// Messages sent to clients

type LobbyUpdateMessage struct {
	Type    string        `json:"type"` // "lobby-update"
	Players []PlayerScore `json:"players"`
}

type ServerInfoMessage struct {
	Type  string `json:"type"` // "server-info"
	LanIP string `json:"lanIp"`
}

type GameStartedMessage struct {
	Type        string `json:"type"` // "game-started"
	TotalRounds int    `json:"totalRounds"`
}

type AwaitRoundMessage struct {
	Type string `json:"type"` // "await-round"
}

type RoundStartedMessage struct {
	Type        string `json:"type"` // "round-started"
	RoundNumber int    `json:"roundNumber"`
}

type BuzzAcceptedMessage struct {
	Type       string `json:"type"` // "buzz-accepted"
	PlayerName string `json:"playerName"`
	Points     int    `json:"points"`
}

// Sent only to the player whose buzz won the race.
type YourTurnMessage struct {
	Type      string `json:"type"` // "your-turn"
	TimeoutMs int64  `json:"timeoutMs"`
}

type WrongGuessMessage struct {
	Type       string `json:"type"` // "wrong-guess"
	PlayerName string `json:"playerName"`
}

// Sent only to the player who just lost their guess.
type DrinkPromptMessage struct {
	Type    string `json:"type"` // "drink-prompt"
	Message string `json:"message"`
}

type RoundOverMessage struct {
	Type      string        `json:"type"` // "round-over"
	Song      *Song         `json:"song"`
	Scores    []PlayerScore `json:"scores"`
	LastPlace *string       `json:"lastPlace"`
	Winner    *string       `json:"winner"`
}

type GameOverMessage struct {
	Type   string        `json:"type"` // "game-over"
	Scores []PlayerScore `json:"scores"`
}

type GameResetMessage struct {
	Type string `json:"type"` // "game-reset"
}

// Sent to a single reconnecting client so its UI can pick up mid-game.
type RejoinStateMessage struct {
	Type        string        `json:"type"` // "rejoin-state"
	Phase       string        `json:"phase"`
	RoundNumber int           `json:"roundNumber"`
	TotalRounds int           `json:"totalRounds"`
	Scores      []PlayerScore `json:"scores"`
	LockedOut   bool          `json:"lockedOut"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func errorMessage(text string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: text}
}

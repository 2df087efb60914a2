package main

import (
	"sort"
	"strings"
)

// Conn is the session's view of one connected client: a non-blocking
// send that reports false when the peer is too slow to keep up.
type Conn interface {
	Send(msg any) bool
}

// Player survives disconnection: dropping the connection only clears the
// handle and the connected flag, never the score or identity, so a
// rejoin with the same id resumes mid-game.
type Player struct {
	Name      string
	Score     int
	Conn      Conn
	Connected bool
}

type PlayerScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Registry maps durable, client-supplied player ids to players. Entries
// are never deleted for the life of the process.
type Registry struct {
	players map[string]*Player
	order   []string // join order, keeps scoreboard ties stable
}

func newRegistry() *Registry {
	return &Registry{
		players: make(map[string]*Player),
	}
}

func (r *Registry) Get(playerID string) *Player {
	return r.players[playerID]
}

func (r *Registry) Add(playerID, name string, conn Conn) *Player {
	p := &Player{
		Name:      name,
		Conn:      conn,
		Connected: true,
	}
	r.players[playerID] = p
	r.order = append(r.order, playerID)
	return p
}

// ByConn finds the player owning a connection. A player who rejoined on
// a newer connection no longer matches their old one, so a stale
// disconnect cannot clobber the fresh session.
func (r *Registry) ByConn(conn Conn) (string, *Player) {
	for _, id := range r.order {
		p := r.players[id]
		if p.Conn == conn {
			return id, p
		}
	}
	return "", nil
}

func (r *Registry) ConnectedCount() int {
	count := 0
	for _, p := range r.players {
		if p.Connected {
			count++
		}
	}
	return count
}

// EligibleCount reports how many connected players can still buzz this
// round.
func (r *Registry) EligibleCount(lockedOut map[string]bool) int {
	count := 0
	for _, id := range r.order {
		if r.players[id].Connected && !lockedOut[id] {
			count++
		}
	}
	return count
}

func (r *Registry) ResetScores() {
	for _, p := range r.players {
		p.Score = 0
	}
}

// Scoreboard returns connected players sorted by score descending,
// recomputed on every call. The sort is stable so equal scores keep
// join order.
func (r *Registry) Scoreboard() []PlayerScore {
	scores := make([]PlayerScore, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		if !p.Connected {
			continue
		}
		scores = append(scores, PlayerScore{Name: p.Name, Score: p.Score})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	return scores
}

const maxNameLength = 20

func trimName(name string) string {
	name = strings.TrimSpace(name)

	runes := []rune(name)
	if len(runes) > maxNameLength {
		return string(runes[:maxNameLength])
	}
	return name
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// outbound mirrors the server's inbound client envelope
type outbound struct {
	Type        string          `json:"type"`
	PlayerID    string          `json:"player_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Rating      int             `json:"rating,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	WinnerID    string          `json:"winner_id,omitempty"`
	LoserRating int             `json:"loser_rating,omitempty"`
}

// inbound mirrors the server's outbound envelope
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

func playerName(idx int) string {
	prefix := playerPrefixes[idx%len(playerPrefixes)]
	return fmt.Sprintf("%s%d", prefix, idx/len(playerPrefixes)+1)
}

var (
	matchesPlayed int64
	actionsSent   int64
	errorCount    int64
)

// runPlayer connects one simulated player, queues, plays a few actions
// and reports a result, then requeues until done is closed.
func runPlayer(url string, idx int, actionsPerMatch int, done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(idx)))
	playerID := fmt.Sprintf("sim-%04d", idx)
	rating := rng.Intn(3000)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		atomic.AddInt64(&errorCount, 1)
		log.Printf("player %s: dial failed: %v", playerID, err)
		return
	}
	defer conn.Close()

	send := func(msg outbound) bool {
		if err := conn.WriteJSON(msg); err != nil {
			atomic.AddInt64(&errorCount, 1)
			return false
		}
		return true
	}

	join := func() bool {
		return send(outbound{
			Type:        "queue.join",
			PlayerID:    playerID,
			DisplayName: playerName(idx),
			Rating:      rating,
			Stats:       json.RawMessage(fmt.Sprintf(`{"wins":%d}`, rng.Intn(500))),
		})
	}

	if !join() {
		return
	}

	for {
		select {
		case <-done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			atomic.AddInt64(&errorCount, 1)
			return
		}

		switch msg.Type {
		case "session.found":
			var data struct {
				SessionID string `json:"session_id"`
			}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				atomic.AddInt64(&errorCount, 1)
				continue
			}
			sessionID := data.SessionID

			for i := 0; i < actionsPerMatch; i++ {
				payload := json.RawMessage(fmt.Sprintf(`{"move":%d}`, rng.Intn(100)))
				if !send(outbound{Type: "session.action", SessionID: sessionID, Payload: payload}) {
					return
				}
				atomic.AddInt64(&actionsSent, 1)
			}

			// Only even-indexed players report, claiming the win, so
			// the two sides never race conflicting results.
			if idx%2 == 0 {
				if !send(outbound{
					Type:        "session.result",
					SessionID:   sessionID,
					WinnerID:    playerID,
					LoserRating: rng.Intn(3000),
				}) {
					return
				}
			}

		case "session.opponent_action":
			// Relayed payloads need no response from the simulator

		case "session.ended", "session.opponent_disconnected":
			atomic.AddInt64(&matchesPlayed, 1)
			time.Sleep(time.Duration(rng.Intn(200)) * time.Millisecond)
			if !join() {
				return
			}

		case "error":
			atomic.AddInt64(&errorCount, 1)
		}
	}
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	players := flag.Int("players", 100, "Number of simulated players")
	actions := flag.Int("actions", 5, "Actions each player sends per match")
	duration := flag.Duration("duration", 0, "Duration to run (0 = until interrupted)")
	flag.Parse()

	fmt.Printf("Starting %d simulated players against %s\n", *players, *url)

	done := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < *players; i++ {
		wg.Add(1)
		go runPlayer(*url, i, *actions, done, &wg)
		// Stagger dials so the server is not hit with a connect burst
		time.Sleep(5 * time.Millisecond)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			close(done)
			wg.Wait()
			fmt.Printf("Matches: %d | Actions: %d | Errors: %d\n",
				atomic.LoadInt64(&matchesPlayed),
				atomic.LoadInt64(&actionsSent),
				atomic.LoadInt64(&errorCount),
			)
			return

		case <-timeout:
			fmt.Println("\nDuration reached, shutting down...")
			close(done)
			wg.Wait()
			fmt.Printf("Matches: %d | Actions: %d | Errors: %d\n",
				atomic.LoadInt64(&matchesPlayed),
				atomic.LoadInt64(&actionsSent),
				atomic.LoadInt64(&errorCount),
			)
			return

		case <-statsTicker.C:
			fmt.Printf("[%s] Matches: %d | Actions: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&matchesPlayed),
				atomic.LoadInt64(&actionsSent),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}

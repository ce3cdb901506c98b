/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Quipbox quiplash game
//
// Players join a game by its id, pick a nickname, answer two prompts each
// round and vote on everyone else's answers.
//
// Routes:
// - $path                    → redirect to a new random game id
// - $path/:gameid            → JSON status of that game
// - $path/:gameid/ws         → websocket for that game
// - $path/:gameid/qr         → PNG QR code for that game URL
// - $path-leaderboard        → JSON leaderboard across all games
// - $path-history            → JSON list of recent round results

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/quipbox/games/quiplash"
	"github.com/Seednode/quipbox/stats"
)

const (
	sendQueueSize     = 32
	writeWait         = 10 * time.Second
	defaultBoardLimit = 10
	maxBoardLimit     = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type inbound struct {
	msg quiplash.Message
	err error
}

// wsConn adapts a websocket to quiplash.Conn. Frames are read by readPump
// and written by writePump; Send only queues.
type wsConn struct {
	conn *websocket.Conn
	log  zerolog.Logger

	send    chan quiplash.Payload
	recv    chan inbound
	done    chan struct{}
	written chan struct{}

	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, log zerolog.Logger) *wsConn {
	c := &wsConn{
		conn:    conn,
		log:     log,
		send:    make(chan quiplash.Payload, sendQueueSize),
		recv:    make(chan inbound, 1),
		done:    make(chan struct{}),
		written: make(chan struct{}),
	}

	go c.readPump()
	go c.writePump()

	return c
}

func (c *wsConn) Send(p quiplash.Payload) error {
	select {
	case <-c.done:
		return quiplash.ErrConnClosed
	default:
	}

	select {
	case c.send <- p:
		return nil
	default:
		c.log.Warn().Msg("send queue full, dropping connection")
		go c.Close()
		return quiplash.ErrConnClosed
	}
}

func (c *wsConn) Receive(timeout time.Duration) (quiplash.Message, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case in, ok := <-c.recv:
		if !ok {
			return quiplash.Message{}, quiplash.ErrConnClosed
		}
		return in.msg, in.err
	case <-t.C:
		return quiplash.Message{}, quiplash.ErrReceiveTimeout
	}
}

// Close flushes queued payloads and closes the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	<-c.written

	return nil
}

func (c *wsConn) readPump() {
	defer close(c.recv)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in.msg); err != nil {
			in.err = quiplash.ErrMalformedMessage
		}

		select {
		case c.recv <- in:
		case <-c.done:
			return
		}

		if in.err != nil {
			return
		}
	}
}

func (c *wsConn) writePump() {
	defer close(c.written)
	defer c.conn.Close()

	write := func(p quiplash.Payload) bool {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(p); err != nil {
			c.log.Debug().Err(err).Msg("write failed")
			return false
		}
		return true
	}

	for {
		select {
		case p := <-c.send:
			if !write(p) {
				c.closeOnce.Do(func() { close(c.done) })
				return
			}
		case <-c.done:
			for {
				select {
				case p := <-c.send:
					if !write(p) {
						return
					}
				default:
					_ = c.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

func serveWS(cfg *Config, manager *quiplash.Manager, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		wsc := newWSConn(conn, log.With().Str("session", gameID).Str("remote", realIP(r)).Logger())
		defer wsc.Close()

		_ = manager.Session(gameID).HandleConnection(r.Context(), wsc)
	}
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func newGameID(manager *quiplash.Manager) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := manager.Lookup(id); !exists {
			return id
		}
	}
}

// redirectNewGame handles GET /path by redirecting to /path/:gameid for a
// fresh game ID.
func redirectNewGame(cfg *Config, path string, manager *quiplash.Manager, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := newGameID(manager)
		log.Info().Str("session", gameID).Msg("new game id issued")
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// qrHandler generates a PNG QR code for the current game URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

type gameStatus struct {
	GameID   string          `json:"game_id"`
	Joinable bool            `json:"joinable"`
	Status   quiplash.Status `json:"status"`
}

func serveStatus(cfg *Config, manager *quiplash.Manager, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")

		s, ok := manager.Lookup(gameID)
		if !ok {
			serveJSON(cfg, log, w, http.StatusNotFound, map[string]string{"error": "no such game", "game_id": gameID})
			return
		}

		serveJSON(cfg, log, w, http.StatusOK, gameStatus{
			GameID:   gameID,
			Joinable: s.Joinable(),
			Status:   s.Game().Status(),
		})
	}
}

// boardLimit reads the optional limit query parameter.
func boardLimit(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultBoardLimit, true
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxBoardLimit {
		return 0, false
	}
	return n, true
}

func serveLeaderboard(cfg *Config, store stats.Store, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		limit, ok := boardLimit(r)
		if !ok {
			serveJSON(cfg, log, w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
			return
		}

		entries, err := store.Leaderboard(r.Context(), limit)
		if err != nil {
			log.Error().Err(err).Msg("could not load leaderboard")
			serveJSON(cfg, log, w, http.StatusInternalServerError, map[string]string{"error": "leaderboard unavailable"})
			return
		}

		serveJSON(cfg, log, w, http.StatusOK, entries)
	}
}

func serveHistory(cfg *Config, store stats.Store, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		limit, ok := boardLimit(r)
		if !ok {
			serveJSON(cfg, log, w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
			return
		}

		records, err := store.History(r.Context(), limit)
		if err != nil {
			log.Error().Err(err).Msg("could not load round history")
			serveJSON(cfg, log, w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
			return
		}

		serveJSON(cfg, log, w, http.StatusOK, records)
	}
}

func newSessionManager(cfg *Config, gameCfg quiplash.Config, store stats.Store, log zerolog.Logger) *quiplash.Manager {
	var observers func(key string) []quiplash.Observer
	if _, disabled := store.(stats.NopStore); !disabled {
		observers = func(key string) []quiplash.Observer {
			return []quiplash.Observer{stats.NewRecorder(store, key, log).Observe}
		}
	}

	return quiplash.NewManager(quiplash.SessionConfig{
		Game:           gameCfg,
		MaxPlayers:     cfg.maxPlayers,
		ReceiveTimeout: cfg.receiveTimeout,
		Logger:         log,
	}, observers)
}

// registerQuiplashGame sets up the game routes under path and starts the idle
// session reaper when one is configured.
func registerQuiplashGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, gameCfg quiplash.Config, store stats.Store, log zerolog.Logger) *quiplash.Manager {
	manager := newSessionManager(cfg, gameCfg, store, log)

	go manager.RunReaper(ctx, cfg.sessionTimeout)

	mux.GET(cfg.prefix+path, logRequests(log, redirectNewGame(cfg, path, manager, log)))

	mux.GET(cfg.prefix+path+"/:gameid", logRequests(log, serveStatus(cfg, manager, log)))

	mux.GET(cfg.prefix+path+"/:gameid/ws", logRequests(log, serveWS(cfg, manager, log)))

	mux.GET(cfg.prefix+path+"/:gameid/qr", logRequests(log, qrHandler))

	mux.GET(cfg.prefix+path+"-leaderboard", logRequests(log, serveLeaderboard(cfg, store, log)))

	mux.GET(cfg.prefix+path+"-history", logRequests(log, serveHistory(cfg, store, log)))

	return manager
}

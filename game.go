// Photo bingo, player side.
//
// Each player claims a name and is dealt a random 5x5 board from the clue
// pool. Tapping a square shows its challenge; uploading a photo completes it.
// After every upload the server re-checks the twelve rows, columns and
// diagonals, and once any line is complete the player may submit their
// bingo, which records the five photos of the first completed line.
//
// Features:
// - Player identified by cookie (user ID), board persisted server-side
// - Joining and uploading closed once the admin sets the phase to finished
// - Letter overlay (B/I/N/G/O) on completed lines, first line wins shared cells
// - Game-over stats: photos and bingos submitted by this player
// - In-browser QR button to share the join link, backed by go-qrcode

package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/photobingo/internal/bingo"
	"github.com/Seednode/photobingo/internal/feed"
	"github.com/Seednode/photobingo/internal/photos"
	"github.com/Seednode/photobingo/internal/store"
)

const (
	playerCookieName = "photobingo_id"
	maxNameLength    = 64
)

//go:embed clues.json
var defaultClues []byte

// Game bundles everything the handlers share.
type Game struct {
	store  *store.Store
	bucket *photos.Bucket
	feed   feed.Feed
	pool   []bingo.Clue
	hub    *Hub
}

// loadPool reads the clue pool from --clues, or the built-in one, and makes
// sure it can fill a board.
func loadPool(cfg *Config) ([]bingo.Clue, error) {
	var r io.Reader = bytes.NewReader(defaultClues)

	if cfg.clues != "" {
		f, err := os.Open(cfg.clues)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		r = f
	}

	pool, err := bingo.LoadPool(r)
	if err != nil {
		return nil, err
	}

	if len(pool) < bingo.Cells {
		return nil, &bingo.InsufficientPoolError{Have: len(pool), Want: bingo.Cells}
	}

	return pool, nil
}

// BoardView is everything the client needs to draw a board.
type BoardView struct {
	Player    store.User        `json:"player"`
	Phase     bingo.Phase       `json:"phase"`
	Cells     bingo.Board       `json:"cells"`
	Completed bingo.Completion  `json:"completed"`
	Lines     []bingo.Line      `json:"lines"`
	Line      *bingo.Line       `json:"line,omitempty"`
	Letters   map[string]string `json:"letters"`
	Headers   [bingo.Size]bool  `json:"headers"`
	CanFinish bool              `json:"can_finish"`
}

func (g *Game) view(r *http.Request, u store.User) (BoardView, error) {
	ctx := r.Context()

	board, err := g.store.LoadBoard(ctx, u.ID)
	if err != nil {
		return BoardView{}, fmt.Errorf("load board: %w", err)
	}

	completed, err := g.store.Completion(ctx, u.ID)
	if err != nil {
		return BoardView{}, err
	}

	if err := bingo.CheckCompletion(board, completed); err != nil {
		log.Warn().Err(err).Str("player", u.ID).Msg("GAMES: stale completion")
	}

	phase, err := g.store.Phase(ctx)
	if err != nil {
		return BoardView{}, err
	}

	v := BoardView{
		Player:    u,
		Phase:     phase,
		Cells:     board,
		Completed: completed,
		Lines:     bingo.DetectLines(board, completed),
		Letters:   make(map[string]string),
	}

	if line, ok := bingo.DetectFirstLine(board, completed); ok {
		v.Line = &line
		v.Headers = bingo.Headers(line)
		v.CanFinish = true
	}

	for i, letter := range bingo.Letters(board, completed) {
		v.Letters[strconv.Itoa(i)] = string(letter)
	}

	return v, nil
}

func (g *Game) publish(r *http.Request, table, op string) {
	if err := g.feed.Publish(r.Context(), feed.Event{Table: table, Op: op}); err != nil {
		log.Error().Err(err).Str("table", table).Msg("GAMES: publish change")
	}
}

func setPlayerCookie(cfg *Config, w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// currentPlayer resolves the player cookie, writing an error response if it
// does not name a known player.
func (g *Game) currentPlayer(w http.ResponseWriter, r *http.Request) (store.User, bool) {
	c, err := r.Cookie(playerCookieName)
	if err != nil || c.Value == "" {
		jsonError(w, "Join the game first.", http.StatusUnauthorized)
		return store.User{}, false
	}

	u, err := g.store.GetUser(r.Context(), c.Value)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "Join the game first.", http.StatusUnauthorized)
		return store.User{}, false
	}
	if err != nil {
		log.Error().Err(err).Msg("GAMES: get player")
		jsonError(w, "Unable to load player.", http.StatusInternalServerError)
		return store.User{}, false
	}

	return u, true
}

func serveNames(cfg *Config, g *Game) httprouter.Handle {
	names := bingo.Names(g.pool)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)
		writeJSON(w, http.StatusOK, names)
	}
}

type joinRequest struct {
	Name string `json:"name"`
}

func serveJoin(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		var req joinRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, "Invalid request.", http.StatusBadRequest)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameLength {
			jsonError(w, fmt.Sprintf("Name must be between 1 and %d characters.", maxNameLength), http.StatusBadRequest)
			return
		}

		phase, err := g.store.Phase(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("GAMES: read phase")
			jsonError(w, "Unable to load game state.", http.StatusInternalServerError)
			return
		}
		if !phase.AllowsJoin() {
			jsonError(w, "The game has ended. You can no longer join.", http.StatusConflict)
			return
		}

		board, err := bingo.Generate(g.pool, bingo.Cells)
		if err != nil {
			log.Error().Err(err).Msg("GAMES: generate board")
			jsonError(w, "Unable to create a board.", http.StatusInternalServerError)
			return
		}

		u, err := g.store.CreateUserWithBoard(r.Context(), name, board)
		if err != nil {
			log.Error().Err(err).Msg("GAMES: create player")
			jsonError(w, "Failed to create user. Please try again.", http.StatusInternalServerError)
			return
		}

		g.publish(r, feed.Users, feed.Insert)
		logf(cfg, "GAMES: Player %q joined from %s", u.Name, realIP(r))

		v, err := g.view(r, u)
		if err != nil {
			log.Error().Err(err).Msg("GAMES: build board")
			jsonError(w, "Unable to load board.", http.StatusInternalServerError)
			return
		}

		setPlayerCookie(cfg, w, u.ID)
		writeJSON(w, http.StatusCreated, v)
	}
}

func serveBoard(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		u, ok := g.currentPlayer(w, r)
		if !ok {
			return
		}

		v, err := g.view(r, u)
		if err != nil {
			boardError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, v)
	}
}

// boardError reports a failed board lookup: a missing board means the player
// has not joined, anything else is a server error.
func boardError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "Join the game first.", http.StatusUnauthorized)
		return
	}

	log.Error().Err(err).Msg("GAMES: load board")
	jsonError(w, "Unable to load board.", http.StatusInternalServerError)
}

// photoURL is where servePhoto serves key.
func photoURL(cfg *Config, key string) string {
	return cfg.prefix + "/photos/" + url.PathEscape(key)
}

// storePhoto writes the upload to the bucket and records it against cell.
// The photo is removed again if it cannot be recorded.
func (g *Game) storePhoto(ctx context.Context, cfg *Config, u store.User, cell bingo.Cell, origName string, r io.Reader) (store.PhotoSubmission, error) {
	key, err := g.bucket.Put(u.Name, origName, r)
	if err != nil {
		return store.PhotoSubmission{}, err
	}

	sub, err := g.store.AddPhoto(ctx, store.PhotoSubmission{
		UserID:    u.ID,
		CellID:    cell.ID,
		PhotoURL:  photoURL(cfg, key),
		ClueText:  cell.Description,
		ClueEmoji: cell.Emoji,
	})
	if err != nil {
		if rmErr := g.bucket.Remove(key); rmErr != nil {
			log.Error().Err(rmErr).Str("key", key).Msg("GAMES: remove unrecorded photo")
		}
		return store.PhotoSubmission{}, fmt.Errorf("record photo: %w", err)
	}

	return sub, nil
}

func serveUpload(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		u, ok := g.currentPlayer(w, r)
		if !ok {
			return
		}

		phase, err := g.store.Phase(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("GAMES: read phase")
			jsonError(w, "Unable to load game state.", http.StatusInternalServerError)
			return
		}
		if !phase.AllowsUpload() {
			jsonError(w, "The game has ended. Photo submissions are no longer allowed.", http.StatusConflict)
			return
		}

		board, err := g.store.LoadBoard(r.Context(), u.ID)
		if err != nil {
			boardError(w, err)
			return
		}

		cell, ok := board.Cell(ps.ByName("cell"))
		if !ok {
			jsonError(w, "Clue not found.", http.StatusNotFound)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.maxUpload+1<<20)

		file, header, err := r.FormFile("photo")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				jsonError(w, "Photo is too large.", http.StatusRequestEntityTooLarge)
				return
			}
			jsonError(w, "Missing photo.", http.StatusBadRequest)
			return
		}
		defer file.Close()

		sub, err := g.storePhoto(r.Context(), cfg, u, cell, header.Filename, file)
		switch {
		case errors.Is(err, photos.ErrTooLarge):
			jsonError(w, "Photo is too large.", http.StatusRequestEntityTooLarge)
			return
		case errors.Is(err, photos.ErrNotImage):
			jsonError(w, "Only image uploads are allowed.", http.StatusUnsupportedMediaType)
			return
		case err != nil:
			log.Error().Err(err).Msg("GAMES: store photo")
			jsonError(w, "Failed to upload photo. Please try again.", http.StatusInternalServerError)
			return
		}

		g.publish(r, feed.PhotoSubmissions, feed.Insert)

		v, err := g.view(r, u)
		if err != nil {
			log.Error().Err(err).Msg("GAMES: build board")
			jsonError(w, "Unable to load board.", http.StatusInternalServerError)
			return
		}

		logf(cfg, "GAMES: Player %q uploaded %s for %s (%s) in %s",
			u.Name,
			sub.PhotoURL,
			cell.ID,
			humanReadableSize(header.Size),
			time.Since(startTime).Round(time.Microsecond),
		)

		writeJSON(w, http.StatusOK, v)
	}
}

func serveFinish(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		u, ok := g.currentPlayer(w, r)
		if !ok {
			return
		}

		board, err := g.store.LoadBoard(r.Context(), u.ID)
		if err != nil {
			boardError(w, err)
			return
		}

		completed, err := g.store.Completion(r.Context(), u.ID)
		if err != nil {
			log.Error().Err(err).Msg("GAMES: load completion")
			jsonError(w, "Unable to load board.", http.StatusInternalServerError)
			return
		}

		line, ok := bingo.DetectFirstLine(board, completed)
		if !ok {
			jsonError(w, "Bingo not yet achieved.", http.StatusConflict)
			return
		}

		sub := store.BingoSubmission{
			UserID:   u.ID,
			UserName: u.Name,
			Line:     line.String(),
		}
		for i, pos := range line.Cells {
			sub.PhotoURLs[i] = completed[board[pos].ID]
		}

		sub, err = g.store.AddBingo(r.Context(), sub)
		if err != nil {
			log.Error().Err(err).Msg("GAMES: record bingo")
			jsonError(w, "Failed to submit Bingo. Please try again.", http.StatusInternalServerError)
			return
		}

		g.publish(r, feed.BingoSubmissions, feed.Insert)
		logf(cfg, "GAMES: Player %q called bingo on %s", u.Name, sub.Line)

		writeJSON(w, http.StatusCreated, sub)
	}
}

type statsResponse struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Photos int    `json:"photos"`
	Bingos int    `json:"bingos"`
}

func serveMyStats(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		u, ok := g.currentPlayer(w, r)
		if !ok {
			return
		}

		photoCount, bingoCount, err := g.store.UserStats(r.Context(), u.ID)
		if err != nil {
			log.Error().Err(err).Msg("GAMES: user stats")
			jsonError(w, "Unable to load stats.", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, statsResponse{
			Name:   u.Name,
			ID:     u.ID,
			Photos: photoCount,
			Bingos: bingoCount,
		})
	}
}

func servePhoto(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := strings.TrimPrefix(ps.ByName("key"), "/")

		f, err := g.bucket.Open(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=86400")
		securityHeaders(cfg, w)

		http.ServeContent(w, r, key, info.ModTime(), f)
	}
}

// serveQR generates a PNG QR code for the join page.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// registerBingoGame sets up the player routes under the prefix.
func registerBingoGame(cfg *Config, g *Game, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/api/names", serveNames(cfg, g))
	mux.POST(cfg.prefix+"/api/players", serveJoin(cfg, g))
	mux.GET(cfg.prefix+"/api/board", serveBoard(cfg, g))
	mux.POST(cfg.prefix+"/api/board/:cell/photo", serveUpload(cfg, g))
	mux.POST(cfg.prefix+"/api/bingo", serveFinish(cfg, g))
	mux.GET(cfg.prefix+"/api/me/stats", serveMyStats(cfg, g))

	mux.GET(cfg.prefix+"/photos/*key", servePhoto(cfg, g))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, g.hub, rolePlayer))

	mux.GET(cfg.prefix+"/qr", serveQR(cfg))
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/njhostel/mysterynight/internal/identity"
	"github.com/njhostel/mysterynight/internal/mysterynight"
	"github.com/njhostel/mysterynight/internal/session"
)

var errUnknownPlayer = errors.New("unknown player")

// OpenSessionRequest is the request body for POST /api/session.
type OpenSessionRequest struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	UserID      *int   `json:"userId"`
}

// PlayResponse is returned when a session is opened.
type PlayResponse struct {
	Token string        `json:"token"`
	State session.State `json:"state"`
}

// PlayerResponse is the identity a /play link resolved to. The client opens
// its session with POST /api/session.
type PlayerResponse struct {
	Player mysterynight.PlayerIdentity `json:"player"`
	Clue   string                      `json:"clue"`
}

// playerFromQuery reads the identity carried by a /play link.
func playerFromQuery(q url.Values) (mysterynight.PlayerIdentity, error) {
	id, err := strconv.Atoi(q.Get("userId"))
	if err != nil {
		return mysterynight.PlayerIdentity{}, mysterynight.ErrMissingIdentity
	}
	p := mysterynight.PlayerIdentity{
		DisplayName: strings.TrimSpace(q.Get("name")),
		Avatar:      q.Get("avatar"),
		UserID:      id,
	}
	return p, p.Validate()
}

// resolvePlayer checks the player against the identity store and returns
// their clue reference.
func resolvePlayer(ctx context.Context, sessions *Registry, ids identity.Resolver, p mysterynight.PlayerIdentity) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.UserID > sessions.Variant().MaxUserID() {
		return "", errUnknownPlayer
	}

	ref, err := ids.ClueReference(ctx, p.UserID)
	if errors.Is(err, identity.ErrNotFound) {
		return "", errUnknownPlayer
	}
	if err != nil {
		return "", fmt.Errorf("loading clue reference: %w", err)
	}
	return ref, nil
}

func openSession(ctx context.Context, sessions *Registry, ids identity.Resolver, p mysterynight.PlayerIdentity) (PlayResponse, error) {
	ref, err := resolvePlayer(ctx, sessions, ids, p)
	if err != nil {
		return PlayResponse{}, err
	}
	token, sess, err := sessions.Open(p, ref)
	if err != nil {
		return PlayResponse{}, err
	}
	return PlayResponse{Token: token, State: sess.Snapshot()}, nil
}

// handlePlay guards the game screen: without a complete, known identity the
// player is sent back to the entry page. It never opens a session.
func handlePlay(sessions *Registry, ids identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := playerFromQuery(r.URL.Query())
		if err != nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		ref, err := resolvePlayer(r.Context(), sessions, ids, p)
		switch {
		case errors.Is(err, mysterynight.ErrMissingIdentity), errors.Is(err, errUnknownPlayer):
			http.Redirect(w, r, "/", http.StatusFound)
			return
		case err != nil:
			writeError(w, http.StatusBadGateway, "failed to load player")
			return
		}

		writeJSON(w, http.StatusOK, PlayerResponse{Player: p, Clue: ref})
	}
}

func handleOpenSession(sessions *Registry, ids identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == nil {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		resp, err := openSession(r.Context(), sessions, ids, mysterynight.PlayerIdentity{
			DisplayName: strings.TrimSpace(req.DisplayName),
			Avatar:      req.Avatar,
			UserID:      *req.UserID,
		})
		switch {
		case errors.Is(err, mysterynight.ErrMissingIdentity):
			writeError(w, http.StatusBadRequest, "name, avatar and userId are required")
			return
		case errors.Is(err, errUnknownPlayer):
			writeError(w, http.StatusNotFound, "unknown player")
			return
		case err != nil:
			writeError(w, http.StatusBadGateway, "failed to start session")
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

package server

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/njhostel/mysterynight/internal/identity"
	"github.com/njhostel/mysterynight/internal/metrics"
	"github.com/njhostel/mysterynight/internal/mysterynight"
	"github.com/njhostel/mysterynight/internal/variant"
)

// CreateIdentityRequest is the request body for POST /api/identity.
type CreateIdentityRequest struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

// IdentityResponse is the response for POST /api/identity.
type IdentityResponse struct {
	UserID      int    `json:"userId"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	PlayURL     string `json:"playUrl"`
}

// ClueResponse is the response for GET /api/clues/{userID}.
type ClueResponse struct {
	UserID int    `json:"userId"`
	Clue   string `json:"clue"`
}

// VariantResponse is the public part of the active variant.
type VariantResponse struct {
	Name         string                     `json:"name"`
	Title        string                     `json:"title"`
	Collectibles []mysterynight.Collectible `json:"collectibles"`
	Avatars      []string                   `json:"avatars"`
	Questions    int                        `json:"questions"`
}

func handleCreateIdentity(ids identity.Resolver, m *metrics.Metrics, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateIdentityRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		name := strings.TrimSpace(req.DisplayName)
		if name == "" {
			writeError(w, http.StatusBadRequest, "Please enter your name.")
			return
		}
		avatar := req.Avatar
		if avatar == "" {
			avatar = mysterynight.Avatars[0]
		} else if !slices.Contains(mysterynight.Avatars, avatar) {
			writeError(w, http.StatusBadRequest, "Please pick one of the offered avatars.")
			return
		}

		id, err := ids.ResolveOrCreate(r.Context(), name)
		if m != nil {
			m.IdentityResolved(err)
		}
		if errors.Is(err, identity.ErrEmptyName) {
			writeError(w, http.StatusBadRequest, "Please enter your name.")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "Failed to create user. Please try again.")
			return
		}

		writeJSON(w, http.StatusOK, IdentityResponse{
			UserID:      id,
			DisplayName: name,
			Avatar:      avatar,
			PlayURL:     playURL(publicURL, name, avatar, id),
		})
	}
}

func playURL(base, name, avatar string, userID int) string {
	q := url.Values{}
	q.Set("name", name)
	q.Set("avatar", avatar)
	q.Set("userId", strconv.Itoa(userID))
	return strings.TrimSuffix(base, "/") + "/play?" + q.Encode()
}

func handleClue(ids identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
		if err != nil || userID < 0 {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}

		clue, err := ids.ClueReference(r.Context(), userID)
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no clue for this user")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to load clue")
			return
		}

		writeJSON(w, http.StatusOK, ClueResponse{UserID: userID, Clue: clue})
	}
}

func handleVariant(v *variant.Variant) http.HandlerFunc {
	resp := VariantResponse{
		Name:         v.Name,
		Title:        v.Title,
		Collectibles: v.Collectibles,
		Avatars:      mysterynight.Avatars,
		Questions:    len(v.Questions),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resp)
	}
}

package server

import (
	"net/http"

	"github.com/njhostel/mysterynight/internal/identity"
)

// AdminUsersResponse is the response for GET /api/admin/users.
type AdminUsersResponse struct {
	Users []identity.User `json:"users"`
}

// AdminSessionsResponse is the response for GET /api/admin/sessions.
type AdminSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

func handleAdminUsers(ids identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := ids.List(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to list users")
			return
		}
		if users == nil {
			users = []identity.User{}
		}
		writeJSON(w, http.StatusOK, AdminUsersResponse{Users: users})
	}
}

func handleAdminSessions(sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AdminSessionsResponse{Sessions: sessions.List()})
	}
}

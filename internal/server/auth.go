package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/njhostel/mysterynight/internal/session"
)

var errNoSession = errors.New("no valid session")

// bearerToken extracts the session token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", errNoSession
	}
	return token, nil
}

func sessionFromRequest(r *http.Request, sessions *Registry) (string, *session.Session, error) {
	token, err := bearerToken(r)
	if err != nil {
		return "", nil, err
	}
	sess, ok := sessions.Get(token)
	if !ok {
		return "", nil, errNoSession
	}
	return token, sess, nil
}

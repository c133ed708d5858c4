package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errNoAdminSession     = errors.New("no valid admin session")
	errInvalidCredentials = errors.New("invalid credentials")
)

const (
	adminCookieName = "admin_session"
	adminSessionTTL = 7 * 24 * time.Hour
)

type adminSession struct {
	ID      string
	Email   string
	Expires time.Time
}

// AdminAuth checks the single configured admin account and keeps its
// sessions in memory.
type AdminAuth struct {
	email        string
	passwordHash []byte
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]adminSession
}

func NewAdminAuth(email, passwordHash string) *AdminAuth {
	return &AdminAuth{
		email:        strings.TrimSpace(strings.ToLower(email)),
		passwordHash: []byte(passwordHash),
		now:          time.Now,
		sessions:     make(map[string]adminSession),
	}
}

// Enabled reports whether an admin account is configured.
func (a *AdminAuth) Enabled() bool {
	return a != nil && a.email != "" && len(a.passwordHash) > 0
}

func (a *AdminAuth) Login(email, password string) (adminSession, error) {
	if !a.Enabled() {
		return adminSession{}, errInvalidCredentials
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email != a.email {
		return adminSession{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return adminSession{}, errInvalidCredentials
	}

	s := adminSession{
		ID:      uuid.NewString(),
		Email:   a.email,
		Expires: a.now().Add(adminSessionTTL),
	}
	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()
	return s, nil
}

func (a *AdminAuth) Session(id string) (adminSession, error) {
	if a == nil {
		return adminSession{}, errNoAdminSession
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		return adminSession{}, errNoAdminSession
	}
	if a.now().After(s.Expires) {
		delete(a.sessions, id)
		return adminSession{}, errNoAdminSession
	}
	return s, nil
}

func (a *AdminAuth) Logout(id string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
}

// adminFromRequest reads the admin_session cookie and looks up the admin session.
func adminFromRequest(r *http.Request, admin *AdminAuth) (adminSession, error) {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil || cookie.Value == "" {
		return adminSession{}, errNoAdminSession
	}
	return admin.Session(cookie.Value)
}

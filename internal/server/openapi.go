package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/njhostel/mysterynight/internal/session"
)

// HealthResponse documents the /healthz body: one entry per checked dependency.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

// playQuery documents the /play query string.
type playQuery struct {
	Name   string `query:"name" required:"true"`
	Avatar string `query:"avatar" required:"true"`
	UserID int    `query:"userId" required:"true"`
}

type tokenQuery struct {
	Token string `query:"token" required:"true"`
}

type cluePath struct {
	UserID int `path:"userID"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	errors                             []int
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Mystery Night API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the hostel farewell scavenger hunt.")

	bearer := "Requires Bearer session token."
	ops := []operation{
		{http.MethodGet, "/healthz", "Health check", "Returns the health status of backend dependencies.",
			nil, HealthResponse{}, []int{http.StatusServiceUnavailable}},
		{http.MethodPost, "/api/identity", "Create identity", "Resolves a display name to its rotating user id, creating it on first sight.",
			CreateIdentityRequest{}, IdentityResponse{}, []int{http.StatusBadRequest, http.StatusBadGateway}},
		{http.MethodGet, "/api/clues/{userID}", "Clue reference", "Returns the clue link assigned to a user id.",
			cluePath{}, ClueResponse{}, []int{http.StatusBadRequest, http.StatusNotFound}},
		{http.MethodGet, "/api/variant", "Active variant", "Returns the public parts of the configured hunt.",
			nil, VariantResponse{}, nil},
		{http.MethodGet, "/play", "Play", "Resolves a complete, known identity without opening a session. Redirects to / otherwise.",
			playQuery{}, PlayerResponse{}, []int{http.StatusBadGateway}},
		{http.MethodPost, "/api/session", "Open session", "Opens a session for a complete identity.",
			OpenSessionRequest{}, PlayResponse{}, []int{http.StatusBadRequest, http.StatusNotFound}},
		{http.MethodGet, "/api/session/state", "Session state", "Returns the full session state. " + bearer,
			nil, session.State{}, []int{http.StatusUnauthorized}},
		{http.MethodPost, "/api/session/start", "Start hunt", "Leaves the welcome screen for the quiz. " + bearer,
			nil, session.State{}, []int{http.StatusUnauthorized, http.StatusConflict}},
		{http.MethodPost, "/api/session/quiz/select", "Answer question", "Selects and checks an option. " + bearer,
			QuizSelectRequest{}, session.State{}, []int{http.StatusBadRequest, http.StatusConflict}},
		{http.MethodPost, "/api/session/quiz/next", "Next question", "Advances past a checked question. " + bearer,
			nil, session.State{}, []int{http.StatusConflict}},
		{http.MethodPost, "/api/session/chase/start", "Start chase", "Starts the chase timers. " + bearer,
			nil, session.State{}, []int{http.StatusConflict}},
		{http.MethodPost, "/api/session/chase/pause", "Pause chase", "Pauses the chase timers. " + bearer,
			nil, session.State{}, []int{http.StatusConflict}},
		{http.MethodPost, "/api/session/chase/resume", "Resume chase", "Resumes a paused chase. " + bearer,
			nil, session.State{}, []int{http.StatusConflict}},
		{http.MethodPost, "/api/session/chase/reset", "Reset chase", "Deals a new board after a loss. " + bearer,
			nil, session.State{}, []int{http.StatusConflict}},
		{http.MethodPost, "/api/session/chase/move", "Move", "Moves the player one cell. " + bearer,
			ChaseMoveRequest{}, session.State{}, []int{http.StatusBadRequest, http.StatusConflict}},
		{http.MethodPost, "/api/session/clue/guess", "Guess theme", "Checks the theme password. " + bearer,
			ClueGuessRequest{}, session.State{}, []int{http.StatusBadRequest, http.StatusConflict}},
		{http.MethodPost, "/api/session/overlay/dismiss", "Dismiss overlay", "Closes the collectible overlay and moves on. " + bearer,
			nil, session.State{}, []int{http.StatusConflict}},
		{http.MethodPost, "/api/session/close", "Close session", "Ends the session and its streams. " + bearer,
			nil, nil, []int{http.StatusUnauthorized}},
		{http.MethodPost, "/api/admin/login", "Admin login", "Authenticate with email and password. Sets admin_session cookie.",
			AdminLoginRequest{}, AdminMeResponse{}, []int{http.StatusUnauthorized}},
		{http.MethodPost, "/api/admin/logout", "Admin logout", "Clears admin session and cookie.",
			nil, nil, nil},
		{http.MethodGet, "/api/admin/me", "Current admin", "Returns the authenticated admin. Requires admin_session cookie.",
			nil, AdminMeResponse{}, []int{http.StatusUnauthorized}},
		{http.MethodGet, "/api/admin/users", "List users", "Returns every stored identity. Requires admin_session cookie.",
			nil, AdminUsersResponse{}, []int{http.StatusUnauthorized}},
		{http.MethodGet, "/api/admin/sessions", "List sessions", "Returns live sessions. Requires admin_session cookie.",
			nil, AdminSessionsResponse{}, []int{http.StatusUnauthorized}},
	}

	for _, op := range ops {
		oc, _ := r.NewOperationContext(op.method, op.path)
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(http.StatusOK))
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	// GET /api/session/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/session/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of state and chase events. Pass token as query parameter.")
	getEvents.AddReqStructure(tokenQuery{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/session/chase/ws
	getChaseWS, _ := r.NewOperationContext(http.MethodGet, "/api/session/chase/ws")
	getChaseWS.SetSummary("Chase controls")
	getChaseWS.SetDescription(`WebSocket for chase input. Send {"direction":"up"}; receives state and chase frames.`)
	getChaseWS.AddReqStructure(tokenQuery{})
	getChaseWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("application/json"))
	_ = r.AddOperation(getChaseWS)

	// GET /qr.png
	getQR, _ := r.NewOperationContext(http.MethodGet, "/qr.png")
	getQR.SetSummary("Invite QR code")
	getQR.SetDescription("PNG QR code linking to the public entry page.")
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("image/png"))
	_ = r.AddOperation(getQR)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

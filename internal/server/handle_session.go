package server

import (
	"errors"
	"net/http"

	"github.com/njhostel/mysterynight/internal/chase"
	"github.com/njhostel/mysterynight/internal/clue"
	"github.com/njhostel/mysterynight/internal/quiz"
	"github.com/njhostel/mysterynight/internal/session"
)

var errInvalidBody = errors.New("invalid request body")

// QuizSelectRequest is the request body for POST /api/session/quiz/select.
type QuizSelectRequest struct {
	Option *int `json:"option"`
}

// ChaseMoveRequest is the request body for POST /api/session/chase/move and
// the message format on the chase websocket.
type ChaseMoveRequest struct {
	Direction string `json:"direction"`
}

// ClueGuessRequest is the request body for POST /api/session/clue/guess.
type ClueGuessRequest struct {
	Guess string `json:"guess"`
}

type sessionOp func(w http.ResponseWriter, r *http.Request, sess *session.Session) error

// handleSessionOp runs op against the caller's session and replies with the
// resulting state.
func handleSessionOp(op sessionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := op(w, r, sess); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	status, msg := sessionError(err)
	writeError(w, status, msg)
}

// sessionError maps a gameplay error to an HTTP status and player-facing text.
func sessionError(err error) (int, string) {
	switch {
	case errors.Is(err, clue.ErrIncorrect):
		return http.StatusBadRequest, clue.IncorrectMessage
	case errors.Is(err, clue.ErrEmptyGuess):
		return http.StatusBadRequest, "Please enter a guess."
	case errors.Is(err, errInvalidBody),
		errors.Is(err, quiz.ErrInvalidOption),
		errors.Is(err, chase.ErrInvalidMove):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrClosed):
		return http.StatusUnauthorized, "session closed"
	case errors.Is(err, session.ErrOverlayOpen),
		errors.Is(err, session.ErrNoOverlay),
		errors.Is(err, session.ErrWrongStage),
		errors.Is(err, session.ErrStageMismatch),
		errors.Is(err, session.ErrNotPassed),
		errors.Is(err, session.ErrFinished),
		errors.Is(err, quiz.ErrAlreadyChecked),
		errors.Is(err, quiz.ErrNoSelection),
		errors.Is(err, quiz.ErrFinished),
		errors.Is(err, chase.ErrNotRunning),
		errors.Is(err, chase.ErrTransition):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func handleSessionState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sessionFrom(r).Snapshot())
	}
}

func handleStart() http.HandlerFunc {
	return handleSessionOp(func(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
		return s.Start()
	})
}

func handleQuizSelect() http.HandlerFunc {
	return handleSessionOp(func(w http.ResponseWriter, r *http.Request, s *session.Session) error {
		var req QuizSelectRequest
		if err := readJSON(w, r, &req); err != nil || req.Option == nil {
			return errInvalidBody
		}
		return s.SelectOption(*req.Option)
	})
}

func handleQuizNext() http.HandlerFunc {
	return handleSessionOp(func(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
		return s.NextQuestion()
	})
}

func handleChaseStart() http.HandlerFunc {
	return handleSessionOp(func(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
		return s.StartChase()
	})
}

func handleChasePause() http.HandlerFunc {
	return handleSessionOp(func(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
		return s.PauseChase()
	})
}

func handleChaseResume() http.HandlerFunc {
	return handleSessionOp(func(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
		return s.ResumeChase()
	})
}

func handleChaseReset() http.HandlerFunc {
	return handleSessionOp(func(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
		return s.ResetChase()
	})
}

func handleChaseMove() http.HandlerFunc {
	return handleSessionOp(func(w http.ResponseWriter, r *http.Request, s *session.Session) error {
		var req ChaseMoveRequest
		if err := readJSON(w, r, &req); err != nil {
			return errInvalidBody
		}
		d, err := chase.ParseDirection(req.Direction)
		if err != nil {
			return err
		}
		return s.MoveChase(d)
	})
}

func handleClueGuess() http.HandlerFunc {
	return handleSessionOp(func(w http.ResponseWriter, r *http.Request, s *session.Session) error {
		var req ClueGuessRequest
		if err := readJSON(w, r, &req); err != nil {
			return errInvalidBody
		}
		return s.GuessClue(req.Guess)
	})
}

func handleOverlayDismiss() http.HandlerFunc {
	return handleSessionOp(func(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
		return s.DismissOverlay()
	})
}

// handleSessionClose ends the caller's session and its streams.
func handleSessionClose(sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Context().Value(ctxKeyToken).(string)
		sessions.Close(token)
		w.WriteHeader(http.StatusNoContent)
	}
}

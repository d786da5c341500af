package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

type staticBooth struct {
	session model.BoothSession
	state   model.BoothState
}

func (b staticBooth) Session() model.BoothSession { return b.session }
func (b staticBooth) State() model.BoothState     { return b.state }

func newAdmin(q *EventQueue, board *StatusBoard) http.Handler {
	booth := staticBooth{
		session: model.BoothSession{ImagesPrinted: 5, PaperTrayCapacity: 18, PaperBundlesLoaded: 1},
		state:   model.StateAwaitingTrigger,
	}
	return NewAdminRouter(q, board, booth, zerolog.Nop())
}

func TestAdminHealth(t *testing.T) {
	h := newAdmin(NewEventQueue(0), NewStatusBoard(time.Now()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminStatus(t *testing.T) {
	board := NewStatusBoard(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	board.Notify(model.BoothEvent{State: model.StateAwaitingTrigger})
	h := newAdmin(NewEventQueue(0), board)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State          string `json:"state"`
		PaperBudget    int    `json:"paperBudget"`
		PaperRemaining int    `json:"paperRemaining"`
		Session        struct {
			ImagesPrinted int `json:"imagesPrinted"`
		} `json:"session"`
		Board struct {
			Entries map[string]int `json:"entries"`
		} `json:"board"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "awaiting_trigger", body.State)
	assert.Equal(t, 18, body.PaperBudget)
	assert.Equal(t, 13, body.PaperRemaining)
	assert.Equal(t, 5, body.Session.ImagesPrinted)
	assert.Equal(t, map[string]int{"awaiting_trigger": 1}, body.Board.Entries)
}

func TestAdminQueuesOperatorInput(t *testing.T) {
	q := NewEventQueue(0)
	h := newAdmin(q, NewStatusBoard(time.Now()))

	for _, path := range []string{"/paper/reload", "/counter/reset", "/trigger", "/quit"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusAccepted, rec.Code, path)
	}

	assert.Equal(t, []model.InputKind{
		model.InputReloadPaper,
		model.InputResetCounter,
		model.InputTrigger,
		model.InputQuit,
	}, kinds(q.Poll()))
}

func TestAdminQueueFull(t *testing.T) {
	q := NewEventQueue(1)
	q.Push(model.InputEvent{Kind: model.InputTrigger})
	h := newAdmin(q, NewStatusBoard(time.Now()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminRejectsWrongMethod(t *testing.T) {
	h := newAdmin(NewEventQueue(0), NewStatusBoard(time.Now()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/paper/reload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusBoardKeepsRecentHistory(t *testing.T) {
	board := NewStatusBoard(time.Now())
	for i := 0; i < statusHistory+5; i++ {
		board.Notify(model.BoothEvent{State: model.StatePrinting, ImagesPrinted: i})
	}
	board.Notify(model.BoothEvent{State: model.StateReady})

	snap := board.Snapshot()
	assert.Len(t, snap.Recent, statusHistory)
	assert.Equal(t, model.StateReady, snap.State)
	require.NotNil(t, snap.Last)
	assert.Equal(t, 1, snap.Entries[model.StatePrinting])
	assert.Equal(t, 1, snap.Entries[model.StateReady])
}

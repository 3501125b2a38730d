package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cocinacasera/casabot/internal/engine"
	"github.com/cocinacasera/casabot/internal/models"
	"github.com/cocinacasera/casabot/internal/testutil"
)

const testUser = "573001112233"

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	timers := engine.NewSimpleTimer()
	t.Cleanup(timers.Stop)
	eng := engine.NewEngine(timers)
	return NewServer(eng, timers), eng
}

// pauseConversation walks a user into the human-help pause.
func pauseConversation(t *testing.T, eng *engine.Engine, user string) {
	t.Helper()
	eng.Process(context.Background(), models.Message{UserID: user, Body: "hola"})
	eng.Process(context.Background(), models.Message{UserID: user, Body: "buenas"})
	eng.Process(context.Background(), models.Message{UserID: user, Body: "1"})
}

func TestHealthHandler(t *testing.T) {
	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/health", nil)
	server.healthHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestHealthHandlerRejectsPost(t *testing.T) {
	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/health", nil)
	server.healthHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "health POST")
}

func TestConversationsHandler(t *testing.T) {
	server, eng := newTestServer(t)
	eng.Process(context.Background(), models.Message{UserID: testUser, Body: "hola"})

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/conversations", nil)
	server.conversationsHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "conversations")
}

func TestUnpauseHandlerRequiresUser(t *testing.T) {
	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/unpause", nil)
	server.unpauseHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "unpause without user")
}

func TestUnpauseHandlerUnknownUser(t *testing.T) {
	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/unpause?user=570000000000", nil)
	server.unpauseHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unpause unknown user")
}

func TestUnpauseHandlerNotPaused(t *testing.T) {
	server, eng := newTestServer(t)
	eng.Process(context.Background(), models.Message{UserID: testUser, Body: "hola"})

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/unpause?user="+testUser, nil)
	server.unpauseHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "unpause active user")
}

func TestUnpauseHandlerSuccess(t *testing.T) {
	server, eng := newTestServer(t)
	pauseConversation(t, eng, testUser)

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/unpause?user="+testUser, nil)
	server.unpauseHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "unpause paused user")
	testutil.AssertJSONResponse(t, rr, "unpaused")
}

func TestResetHandler(t *testing.T) {
	server, eng := newTestServer(t)
	eng.Process(context.Background(), models.Message{UserID: testUser, Body: "hola"})

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/reset", nil)
	server.resetHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "reset")
	if eng.Store().Count() != 0 {
		t.Errorf("expected empty store after reset, got %d", eng.Store().Count())
	}
}

func TestWithRouteMountsHandler(t *testing.T) {
	timers := engine.NewSimpleTimer()
	t.Cleanup(timers.Stop)
	eng := engine.NewEngine(timers)

	hit := false
	server := NewServer(eng, timers, WithRoute("/twilio/webhook", func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/twilio/webhook", nil)
	server.mux().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "extra route")
	if !hit {
		t.Error("mounted handler was not invoked")
	}

	// Built-in routes stay reachable alongside the extra one.
	rr = httptest.NewRecorder()
	req = testutil.CreateHTTPRequest(t, http.MethodGet, "/health", nil)
	server.mux().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health via mux")
}

func TestTimersHandler(t *testing.T) {
	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/timers", nil)
	server.timersHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "timers")
}

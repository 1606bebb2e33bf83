package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lot-auction-backend/internal/archive"
	"github.com/DoyleJ11/lot-auction-backend/internal/hub"
	"github.com/DoyleJ11/lot-auction-backend/internal/lobby"
	"github.com/DoyleJ11/lot-auction-backend/internal/types"
)

type fakeResults struct {
	rows []archive.LotResult
	err  error
}

func (f fakeResults) ListRoom(context.Context, string) ([]archive.LotResult, error) {
	return f.rows, f.err
}

func newRouter(t *testing.T, mutate ...func(*Deps)) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	d := Deps{
		Hub:           hub.NewHub(ctx, hub.Config{Lobby: lobby.Config{Logger: zap.NewNop()}}),
		Logger:        zap.NewNop(),
		AdminSecret:   "hunter2",
		PublicBaseURL: "https://auction.example",
	}
	for _, m := range mutate {
		m(&d)
	}
	return SetupRoutes(d)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func roomState(t *testing.T, h http.Handler, code string) types.ServerMessage {
	t.Helper()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/rooms/"+code, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	return msg
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
}

func TestHealthz(t *testing.T) {
	rec := do(t, newRouter(t), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		OK bool  `json:"ok"`
		TS int64 `json:"ts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Positive(t, body.TS)
}

func TestCreateRoom_WithSettingsOverride(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{"settings":{"budgetCap":900,"picksPerLeader":3}}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct{ Code string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Code, 6)

	state := roomState(t, h, created.Code)
	assert.Equal(t, 900, state.Room.Settings.BudgetCap)
	assert.Equal(t, 3, state.Room.Settings.PicksPerLeader)
	assert.Equal(t, 10, state.Room.Settings.BidIncrement)
}

func TestCreateRoom_RejectsBadSettings(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{"settings":{"bidIncrement":0}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{nope`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomState_UnknownRoom(t *testing.T) {
	rec := do(t, newRouter(t), httptest.NewRequest(http.MethodGet, "/rooms/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRoster(t *testing.T) {
	h := newRouter(t)
	csv := "id,name,roles,pitch\np1,Alice,top|mid,hi\np2,Bob,,\n"

	req := httptest.NewRequest(http.MethodPost, "/rooms/MAIN/roster", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set(adminHeader, "hunter2")
	rec := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	state := roomState(t, h, hub.DefaultRoom)
	require.Len(t, state.Room.Roster, 2)
	assert.Equal(t, "Alice", state.Room.Roster[0].Name)
	assert.Equal(t, []string{"top", "mid"}, state.Room.Roster[0].PreferredRoles)
	require.NotEmpty(t, state.Log)
	assert.Equal(t, "room reset", state.Log[len(state.Log)-1].Text)
}

func TestUploadRoster_Multipart(t *testing.T) {
	h := newRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "roster.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("name\nAlice\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/rooms/MAIN/roster", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(adminHeader, "hunter2")
	rec := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, roomState(t, h, hub.DefaultRoom).Room.Roster, 1)
}

func TestUploadRoster_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		deps   func(*Deps)
		body   string
		want   int
	}{
		{name: "wrong secret", secret: "nope", body: "name\nA\n", want: http.StatusUnauthorized},
		{name: "missing secret", body: "name\nA\n", want: http.StatusUnauthorized},
		{name: "upload disabled", secret: "", deps: func(d *Deps) { d.AdminSecret = "" }, body: "name\nA\n", want: http.StatusForbidden},
		{name: "malformed csv", secret: "hunter2", body: "pitch\nhi\n", want: http.StatusBadRequest},
		{name: "duplicate ids", secret: "hunter2", body: "id,name\nx,A\nx,B\n", want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var h http.Handler
			if tc.deps != nil {
				h = newRouter(t, tc.deps)
			} else {
				h = newRouter(t)
			}
			req := httptest.NewRequest(http.MethodPost, "/rooms/MAIN/roster", strings.NewReader(tc.body))
			if tc.secret != "" {
				req.Header.Set(adminHeader, tc.secret)
			}
			rec := do(t, h, req)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.Empty(t, roomState(t, h, hub.DefaultRoom).Room.Roster)
		})
	}
}

func TestRoomQR(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/rooms/MAIN/qr", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/rooms/NOPE/qr", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomResults(t *testing.T) {
	rec := do(t, newRouter(t), httptest.NewRequest(http.MethodGet, "/rooms/MAIN/results", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rows := []archive.LotResult{{ID: 1, Room: "MAIN", CandidateID: "c1", Outcome: archive.OutcomeSold, Price: 30}}
	h := newRouter(t, func(d *Deps) { d.Results = fakeResults{rows: rows} })
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/rooms/MAIN/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got []archive.LotResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, rows, got)

	h = newRouter(t, func(d *Deps) { d.Results = fakeResults{err: errors.New("db down")} })
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/rooms/MAIN/results", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(t, func(d *Deps) { d.AllowedOrigins = []string{"https://app.example"} })

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := do(t, h, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"*", "app.example", "localhost:5173"},
		originPatterns([]string{"*", "https://app.example/", "http://localhost:5173"}))
}

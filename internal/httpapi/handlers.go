package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lot-auction-backend/internal/archive"
	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
	"github.com/DoyleJ11/lot-auction-backend/internal/hub"
	"github.com/DoyleJ11/lot-auction-backend/internal/lobby"
	"github.com/DoyleJ11/lot-auction-backend/internal/roster"
	"github.com/DoyleJ11/lot-auction-backend/internal/types"
)

const (
	adminHeader   = "X-Admin-Secret"
	maxRosterSize = 1 << 20
	stateTimeout  = 2 * time.Second
)

type ResultLister interface {
	ListRoom(ctx context.Context, room string) ([]archive.LotResult, error)
}

type api struct {
	Deps
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createRoomRequest struct {
	Settings *engine.Settings `json:"settings"`
}

func (a *api) CreateRoom(w http.ResponseWriter, r *http.Request) {
	settings := a.Hub.Settings()
	if r.ContentLength != 0 {
		req := createRoomRequest{Settings: &settings}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
	}
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate code")
			return
		}
		if a.Hub.Lookup(r.Context(), c) == nil {
			code = c
			break
		}
		a.Logger.Debug("collision on room code, regenerating", zap.String("room", c))
	}

	reply := make(chan *lobby.Lobby, 1)
	a.Hub.Inbox() <- hub.CreateLobby{Code: code, State: engine.NewEmptyState(settings), Reply: reply}
	if <-reply == nil {
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Code string `json:"code"`
	}{Code: code})
}

func (a *api) RoomState(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.lookup(w, r)
	if !ok {
		return
	}
	v, ok := getView(r.Context(), lb)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "room unavailable")
		return
	}
	writeJSON(w, http.StatusOK, types.ServerMessage{Type: "Snapshot", Version: v.Version, Room: &v.Room, Log: v.Log})
}

func (a *api) RoomQR(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.lookup(w, r)
	if !ok {
		return
	}
	joinURL := a.PublicBaseURL + "/?room=" + url.QueryEscape(lb.Code())
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (a *api) RoomResults(w http.ResponseWriter, r *http.Request) {
	if a.Results == nil {
		writeError(w, http.StatusNotFound, "results archive is not enabled")
		return
	}
	code := chi.URLParam(r, "code")
	rows, err := a.Results.ListRoom(r.Context(), code)
	if err != nil {
		a.Logger.Error("list results", zap.String("room", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if rows == nil {
		rows = []archive.LotResult{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *api) UploadRoster(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRosterSize)
	body, closeBody, err := rosterBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeBody()

	candidates, err := roster.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	errs := make(chan error, 1)
	cmd := engine.Command{Type: engine.CmdUploadRoster, ClientID: "admin", Roster: candidates}
	if !lb.Send(r.Context(), lobby.FromClient{Cmd: cmd, Reply: errs}) {
		writeError(w, http.StatusServiceUnavailable, "room unavailable")
		return
	}
	// The lobby handles messages in order, so once the view arrives the upload has been applied or rejected.
	v, ok := getView(r.Context(), lb)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "room unavailable")
		return
	}
	select {
	case err := <-errs:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
	}

	a.Logger.Info("roster uploaded", zap.String("room", lb.Code()), zap.Int("candidates", len(candidates)))
	writeJSON(w, http.StatusOK, struct {
		Count   int `json:"count"`
		Version int `json:"version"`
	}{Count: len(candidates), Version: v.Version})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		OK bool  `json:"ok"`
		TS int64 `json:"ts"`
	}{OK: true, TS: time.Now().UnixMilli()})
}

func (a *api) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.AdminSecret == "" {
			writeError(w, http.StatusForbidden, "roster upload is disabled")
			return
		}
		got := r.Header.Get(adminHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.AdminSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "wrong admin secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *api) lookup(w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	lb := a.Hub.Lookup(r.Context(), chi.URLParam(r, "code"))
	if lb == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return nil, false
	}
	return lb, true
}

func getView(ctx context.Context, lb *lobby.Lobby) (lobby.View, bool) {
	ctx, cancel := context.WithTimeout(ctx, stateTimeout)
	defer cancel()

	reply := make(chan lobby.View, 1)
	if !lb.Send(ctx, lobby.GetState{Reply: reply}) {
		return lobby.View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-ctx.Done():
		return lobby.View{}, false
	}
}

// rosterBody accepts either a raw CSV body or a multipart form with a "file" field.
func rosterBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New("multipart upload needs a \"file\" field")
	}
	return f, func() { f.Close() }, nil
}

func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, strings.TrimRight(o, "/"))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

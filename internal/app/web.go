// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/sensorscope/internal/chart"
	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/render"
	"github.com/relabs-tech/sensorscope/internal/selector"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

//go:embed static
var staticFiles embed.FS

const (
	defaultPNGWidth  = 320
	defaultPNGHeight = 160
	maxPNGSide       = 2048
)

// WebServer exposes the selector over HTTP and a websocket.
type WebServer struct {
	sel      *selector.Selector
	hub      *Hub
	onSelect func(sensors.Kind)
	log      *zap.SugaredLogger
}

// NewWebServer wires sel to a websocket hub. onSelect, if set, runs after
// every successful selection.
func NewWebServer(sel *selector.Selector, onSelect func(sensors.Kind)) *WebServer {
	ws := &WebServer{
		sel:      sel,
		hub:      NewHub(),
		onSelect: onSelect,
		log:      logging.Named("web"),
	}
	sel.Observe(func(st chart.State) {
		ws.hub.Broadcast(WSResponse{Type: "chart", Chart: &st})
	})
	return ws
}

func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/modes", ws.handleModes)
	mux.HandleFunc("GET /api/mode", ws.handleGetMode)
	mux.HandleFunc("POST /api/mode", ws.handleSetMode)
	mux.HandleFunc("GET /api/chart", ws.handleChart)
	mux.HandleFunc("GET /api/chart.png", ws.handleChartPNG)
	mux.HandleFunc("GET /ws", ws.handleWS)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err) // embedded at build time
	}
	mux.Handle("GET /", http.FileServer(http.FS(static)))
	return mux
}

// Close disconnects websocket clients.
func (ws *WebServer) Close() {
	ws.hub.Close()
}

// selectMode is shared by the REST and websocket paths.
func (ws *WebServer) selectMode(mode sensors.Kind) error {
	if err := ws.sel.SelectMode(mode); err != nil {
		return err
	}
	if ws.onSelect != nil {
		ws.onSelect(mode)
	}
	ws.hub.Broadcast(WSResponse{Type: "menu", Menu: ws.sel.Menu()})
	return nil
}

func (ws *WebServer) handleModes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ws.sel.Menu())
}

type modeBody struct {
	Mode string `json:"mode"`
}

func (ws *WebServer) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modeBody{Mode: ws.sel.Mode().String()})
}

func (ws *WebServer) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body modeBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	mode, err := parseMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := ws.selectMode(mode); err != nil {
		ws.log.Warnw("select mode", "mode", mode, "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, modeBody{Mode: mode.String()})
}

func (ws *WebServer) handleChart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ws.sel.Snapshot())
}

func (ws *WebServer) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	width, err := sizeParam(r, "w", defaultPNGWidth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := sizeParam(r, "h", defaultPNGHeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer
	if err := render.PNG(&buf, ws.sel.Snapshot(), render.Options{Width: width, Height: height}); err != nil {
		ws.log.Warnw("chart render error", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		ws.log.Debugw("png write error", "error", err)
	}
}

func (ws *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Warnw("websocket upgrade error", "error", err)
		return
	}
	client, ok := ws.hub.add(conn)
	if !ok {
		conn.Close()
		return
	}
	defer ws.hub.remove(client)

	st := ws.sel.Snapshot()
	ws.hub.sendTo(client, WSResponse{Type: "menu", Menu: ws.sel.Menu()})
	ws.hub.sendTo(client, WSResponse{Type: "chart", Chart: &st})

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.log.Debugw("websocket read error", "error", err)
			}
			return
		}

		switch msg.Action {
		case "select":
			mode, err := parseMode(msg.Mode)
			if err == nil {
				err = ws.selectMode(mode)
			}
			if err != nil {
				ws.hub.sendTo(client, WSResponse{Type: "error", Message: err.Error()})
			}
		default:
			ws.hub.sendTo(client, WSResponse{Type: "error", Message: fmt.Sprintf("unknown action %q", msg.Action)})
		}
	}
}

// parseMode accepts the three selectable modes only.
func parseMode(s string) (sensors.Kind, error) {
	mode, err := sensors.ParseKind(s)
	if err != nil {
		return sensors.None, err
	}
	if !mode.Valid() {
		return sensors.None, fmt.Errorf("%w: %q", sensors.ErrUnknownKind, s)
	}
	return mode, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sensors.ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, sensors.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, selector.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sizeParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 16 || v > maxPNGSide {
		return 0, fmt.Errorf("%s must be between 16 and %d", name, maxPNGSide)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Named("web").Warnw("json encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// RunWeb serves the web UI until ctx is cancelled.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	log := logging.Named("web")

	// the broker is required for the mqtt source and optional otherwise
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		if cfg.SensorSource == config.SourceMQTT {
			return err
		}
		log.Warnw("running without MQTT, mode changes are not shared", "error", err)
		client = nil
	} else {
		defer client.Disconnect(250)
	}

	src, release, err := openSource(cfg, client)
	if err != nil {
		return err
	}
	defer release()

	sel := selector.New(src, cfg.SampleRate)
	defer sel.Close()

	var relay *modeRelay
	if client != nil {
		relay = newModeRelay(client, cfg.TopicMode)
		defer relay.Close()
	}
	server := NewWebServer(sel, func(sensors.Kind) { relay.Announce(sel) })
	defer server.Close()

	if mode := selectInitial(sel, src, cfg.InitialMode); mode.Valid() {
		relay.Announce(sel)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("web server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
	}

	log.Infow("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

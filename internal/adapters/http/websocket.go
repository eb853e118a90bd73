package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/fobi-id/obsmap/internal/adapters/nats"
	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/lod"
	"github.com/fobi-id/obsmap/internal/pkg/metrics"
)

// wsInbound is sent by the map client.
//
//	{"type":"zoom","zoom":11.3,"bbox":[110,-8,111,-7]}  every intermediate zoom
//	{"type":"zoomend"}                                  gesture finished
//	{"type":"place","lat":-7.79,"lon":110.36}           popup opened
type wsInbound struct {
	Type string    `json:"type"`
	Zoom float64   `json:"zoom"`
	BBox []float64 `json:"bbox"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
}

// wsOutbound is pushed to the map client.
type wsOutbound struct {
	Type   string          `json:"type"` // "view" | "place" | "error"
	Reason string          `json:"reason,omitempty"`
	View   *domain.MapView `json:"view,omitempty"`
	Lat    float64         `json:"lat,omitempty"`
	Lon    float64         `json:"lon,omitempty"`
	Name   string          `json:"name,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// MapWebSocketUpgrade rejects non-upgrade requests and unknown sessions
// before the connection is hijacked.
func MapWebSocketUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		id := c.Query("session")
		if id == "" {
			return errBadRequest(c, "session query parameter is required")
		}
		owner, err := deps.Sessions.Owner(id)
		if err != nil {
			return errFromService(c, err)
		}
		c.Locals("session", id)
		c.Locals("owner", owner)
		return c.Next()
	}
}

// MapWebSocketHandler streams map views for one session. Zoom messages are
// debounced so the client gets one view per settled gesture; updates to
// the owner's observations push a reloaded view.
func MapWebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID, _ := c.Locals("session").(string)
		owner, _ := c.Locals("owner").(string)
		logger := slog.Default().With("session", sessionID, "remote", c.RemoteAddr().String())
		logger.Info("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())

		// c returns to a pool when this handler exits. Every goroutine that
		// may write to it registers in writers first, and nothing writes
		// once closed is set.
		var (
			mu      sync.Mutex
			closed  bool
			writers sync.WaitGroup
		)
		acquire := func() bool {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return false
			}
			writers.Add(1)
			return true
		}
		writeJSON := func(v wsOutbound) {
			data, err := json.Marshal(v)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			_ = c.WriteMessage(websocket.TextMessage, data)
		}

		done := make(chan struct{})
		defer func() {
			cancel()
			mu.Lock()
			closed = true
			mu.Unlock()
			close(done)
			writers.Wait()
			logger.Info("ws client disconnected")
		}()

		var vpMu sync.Mutex
		var viewport *domain.Bounds

		debouncer := lod.NewDebouncer(deps.ZoomDebounce, func(zoom float64, _ domain.DetailLevel) {
			if !acquire() {
				return
			}
			defer writers.Done()
			vpMu.Lock()
			vp := viewport
			vpMu.Unlock()
			view, err := deps.Sessions.ApplyZoom(ctx, sessionID, zoom, vp)
			if err != nil {
				writeJSON(wsOutbound{Type: "error", Error: err.Error()})
				return
			}
			writeJSON(wsOutbound{Type: "view", Reason: "zoom", View: view})
		})
		defer debouncer.Stop()

		if deps.NATS != nil && owner != "" {
			sub, err := deps.NATS.Subscribe(natsadapter.UpdatedSubject(owner), func(_ *nats.Msg) {
				if !acquire() {
					return
				}
				defer writers.Done()
				view, err := deps.Sessions.Reload(ctx, sessionID)
				if err != nil {
					logger.Warn("session reload failed", "error", err)
					return
				}
				writeJSON(wsOutbound{Type: "view", Reason: "reload", View: view})
			})
			if err != nil {
				logger.Warn("ws subscribe failed", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		// Initial view so the client can draw before the first gesture.
		if view, err := deps.Sessions.View(ctx, sessionID); err == nil {
			writeJSON(wsOutbound{Type: "view", Reason: "initial", View: view})
		}

		// Keep-alive ping
		if acquire() {
			go func() {
				defer writers.Done()
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						mu.Lock()
						if closed {
							mu.Unlock()
							return
						}
						err := c.WriteMessage(websocket.PingMessage, nil)
						mu.Unlock()
						if err != nil {
							return
						}
					case <-done:
						return
					}
				}
			}()
		}

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsInbound
			if err := json.Unmarshal(raw, &m); err != nil {
				writeJSON(wsOutbound{Type: "error", Error: "invalid JSON"})
				continue
			}

			switch m.Type {
			case "zoom":
				if err := validZoom(m.Zoom); err != nil {
					writeJSON(wsOutbound{Type: "error", Error: err.Error()})
					continue
				}
				if m.BBox != nil {
					b, err := boundsFromSlice(m.BBox)
					if err != nil {
						writeJSON(wsOutbound{Type: "error", Error: err.Error()})
						continue
					}
					vpMu.Lock()
					viewport = b
					vpMu.Unlock()
				}
				debouncer.Zoom(m.Zoom)

			case "zoomend":
				debouncer.Settle()

			case "place":
				if !domain.ValidLatitude(m.Lat) || !domain.ValidLongitude(m.Lon) {
					writeJSON(wsOutbound{Type: "error", Error: "lat/lon out of range"})
					continue
				}
				// Lookups can take seconds; keep reading zoom messages meanwhile.
				if !acquire() {
					continue
				}
				go func(lat, lon float64) {
					defer writers.Done()
					name, err := deps.Sessions.Resolve(ctx, sessionID, lat, lon)
					if err != nil {
						writeJSON(wsOutbound{Type: "error", Error: err.Error()})
						return
					}
					writeJSON(wsOutbound{Type: "place", Lat: lat, Lon: lon, Name: name})
				}(m.Lat, m.Lon)

			default:
				writeJSON(wsOutbound{Type: "error", Error: "unknown message type: " + m.Type})
			}
		}
	}
}

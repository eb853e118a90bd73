package http_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

type wsMessage struct {
	Type   string          `json:"type"`
	Reason string          `json:"reason"`
	View   *domain.MapView `json:"view"`
	Lat    float64         `json:"lat"`
	Lon    float64         `json:"lon"`
	Name   string          `json:"name"`
	Error  string          `json:"error"`
}

// serve runs app on a loopback listener and returns its address.
func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func dialMap(t *testing.T, addr, sessionID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/map?session="+sessionID, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readMessage waits up to d for the next message. A false result leaves
// the connection unusable for further reads.
func readMessage(t *testing.T, conn *websocket.Conn, d time.Duration) (wsMessage, bool) {
	t.Helper()
	var m wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(d))
	if err := conn.ReadJSON(&m); err != nil {
		return m, false
	}
	return m, true
}

func expectInitialView(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	m, ok := readMessage(t, conn, 2*time.Second)
	if !ok || m.Type != "view" || m.Reason != "initial" {
		t.Fatalf("expected initial view, got %+v (ok=%v)", m, ok)
	}
	if m.View == nil || m.View.Level != domain.DetailExtraLarge {
		t.Errorf("expected initial extraLarge view, got %+v", m.View)
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestMapWebSocket_RejectsBeforeUpgrade(t *testing.T) {
	app := setupApp(makeDeps())
	addr := serve(t, app)

	tests := []struct {
		query string
		want  int
	}{
		{"", fiber.StatusBadRequest},
		{"?session=", fiber.StatusBadRequest},
		{"?session=no-such-session", fiber.StatusNotFound},
	}
	for _, tt := range tests {
		_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/map"+tt.query, nil)
		if !errors.Is(err, websocket.ErrBadHandshake) {
			t.Errorf("%q: expected bad handshake, got %v", tt.query, err)
			continue
		}
		if resp == nil || resp.StatusCode != tt.want {
			t.Errorf("%q: expected status %d, got %+v", tt.query, tt.want, resp)
		}
	}
}

func TestMapWebSocket_ZoomBurstYieldsOneView(t *testing.T) {
	deps := makeDeps()
	deps.ZoomDebounce = 100 * time.Millisecond
	app := setupApp(deps)
	addr := serve(t, app)
	id := createSession(t, app, `{"user_id":"u1"}`)

	conn := dialMap(t, addr, id)
	expectInitialView(t, conn)

	for _, z := range []float64{7, 8.5, 9.7, 11, 12.4, 14} {
		send(t, conn, map[string]any{"type": "zoom", "zoom": z})
	}

	m, ok := readMessage(t, conn, 2*time.Second)
	if !ok || m.Type != "view" || m.Reason != "zoom" {
		t.Fatalf("expected a zoom view, got %+v (ok=%v)", m, ok)
	}
	if m.View.Zoom != 14 || m.View.Level != domain.DetailMarkers {
		t.Errorf("expected the last zoom to win, got zoom %v level %q", m.View.Zoom, m.View.Level)
	}
	if len(m.View.Markers) != 3 {
		t.Errorf("expected 3 markers, got %d", len(m.View.Markers))
	}

	if extra, ok := readMessage(t, conn, 400*time.Millisecond); ok {
		t.Errorf("expected a single view per gesture, also got %+v", extra)
	}
}

func TestMapWebSocket_ZoomEndSettlesImmediately(t *testing.T) {
	deps := makeDeps()
	deps.ZoomDebounce = 10 * time.Second
	app := setupApp(deps)
	addr := serve(t, app)
	id := createSession(t, app, `{"user_id":"u1"}`)

	conn := dialMap(t, addr, id)
	expectInitialView(t, conn)

	send(t, conn, map[string]any{"type": "zoom", "zoom": 5, "bbox": []float64{110, -8, 111, -7}})
	send(t, conn, map[string]any{"type": "zoomend"})

	m, ok := readMessage(t, conn, 2*time.Second)
	if !ok || m.Type != "view" || m.Reason != "zoom" {
		t.Fatalf("expected a zoom view, got %+v (ok=%v)", m, ok)
	}
	if m.View.Level != domain.DetailExtraLarge {
		t.Errorf("expected extraLarge at zoom 5, got %q", m.View.Level)
	}
	if len(m.View.Cells) != 1 || m.View.Total != 2 {
		t.Errorf("expected 1 cell with 2 observations in the viewport, got %d cells total %d", len(m.View.Cells), m.View.Total)
	}
}

func TestMapWebSocket_InvalidMessages(t *testing.T) {
	app := setupApp(makeDeps())
	addr := serve(t, app)
	id := createSession(t, app, `{"user_id":"u1"}`)

	conn := dialMap(t, addr, id)
	expectInitialView(t, conn)

	for _, msg := range []any{
		map[string]any{"type": "zoom", "zoom": 31},
		map[string]any{"type": "place", "lat": 95, "lon": 0},
		map[string]any{"type": "pan"},
	} {
		send(t, conn, msg)
		m, ok := readMessage(t, conn, 2*time.Second)
		if !ok || m.Type != "error" || m.Error == "" {
			t.Errorf("%v: expected error reply, got %+v (ok=%v)", msg, m, ok)
		}
	}
}

func TestMapWebSocket_PlaceUsesSessionCache(t *testing.T) {
	geo := &mockGeocoder{reverseFn: kalasan}
	app := setupApp(makeDeps(func(o *depsOpts) { o.geocoder = geo }))
	addr := serve(t, app)
	id := createSession(t, app, `{"user_id":"u1"}`)

	conn := dialMap(t, addr, id)
	expectInitialView(t, conn)

	for i := 0; i < 2; i++ {
		send(t, conn, map[string]any{"type": "place", "lat": -7.55, "lon": 110.82})
		m, ok := readMessage(t, conn, 2*time.Second)
		if !ok || m.Type != "place" {
			t.Fatalf("expected place reply, got %+v (ok=%v)", m, ok)
		}
		if m.Name != "Kalasan, DI Yogyakarta, Indonesia" || m.Lat != -7.55 || m.Lon != 110.82 {
			t.Errorf("unexpected place reply %+v", m)
		}
	}
	if n := geo.calls.Load(); n != 1 {
		t.Errorf("expected 1 geocoder call, got %d", n)
	}
}

func TestMapWebSocket_NoRepliesAfterDisconnect(t *testing.T) {
	geo := &mockGeocoder{reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Place, error) {
		time.Sleep(300 * time.Millisecond)
		return kalasan(ctx, lat, lon)
	}}
	deps := makeDeps(func(o *depsOpts) { o.geocoder = geo })
	app := setupApp(deps)
	addr := serve(t, app)

	first := createSession(t, app, `{"user_id":"u1"}`)
	second := createSession(t, app, `{"user_id":"u1"}`)

	a := dialMap(t, addr, first)
	expectInitialView(t, a)
	send(t, a, map[string]any{"type": "place", "lat": -7.55, "lon": 110.82})
	time.Sleep(20 * time.Millisecond)
	_ = a.Close()

	b := dialMap(t, addr, second)
	expectInitialView(t, b)

	if m, ok := readMessage(t, b, 700*time.Millisecond); ok {
		t.Errorf("second client received a message it did not ask for: %+v", m)
	}
}

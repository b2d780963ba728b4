package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-audiostream/pkg/audiosource"
	"github.com/teslashibe/go-audiostream/pkg/chunkcodec"
	"github.com/teslashibe/go-audiostream/pkg/protocol"
	"github.com/teslashibe/go-audiostream/pkg/streaming"
	"github.com/teslashibe/go-audiostream/pkg/transport"
)

var quiet = slog.New(slog.DiscardHandler)

func TestNewHub(t *testing.T) {
	hub := NewHub(WithLogger(quiet))

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.StreamCount() != 0 {
		t.Error("StreamCount should be 0 initially")
	}
	if hub.Registry() == nil {
		t.Error("Registry should not be nil")
	}
}

func TestGetStats(t *testing.T) {
	hub := NewHub(WithLogger(quiet))

	if diff := cmp.Diff(Stats{}, hub.GetStats()); diff != "" {
		t.Errorf("initial stats mismatch (-want +got):\n%s", diff)
	}
}

func TestGetStreamNotFound(t *testing.T) {
	hub := NewHub(WithLogger(quiet))

	if s := hub.GetStream("nonexistent"); s != nil {
		t.Error("GetStream should return nil for nonexistent stream")
	}
	if infos := hub.GetStreamInfos(); len(infos) != 0 {
		t.Error("GetStreamInfos should return empty slice initially")
	}
}

func TestTwoHubsRegisterMetrics(t *testing.T) {
	// Per-hub registries must not collide.
	NewHub(WithLogger(quiet))
	NewHub(WithLogger(quiet))
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("Request %s error: %v", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestAPIRoutes(t *testing.T) {
	app := NewHub(WithLogger(quiet)).App()

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/api/streams", 200, `"streams"`},
		{"/api/stats", 200, `"chunks_received"`},
		{"/healthz", 200, `"ok"`},
		{"/metrics", 200, "ingest_active_streams"},
		{"/ws/ingest", fiber.StatusUpgradeRequired, ""},
	}

	for _, tt := range tests {
		status, body := get(t, app, tt.path)
		if status != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, status, tt.status)
		}
		if !strings.Contains(body, tt.contains) {
			t.Errorf("GET %s body should contain %q, got %q", tt.path, tt.contains, body)
		}
	}
}

// serve starts hub on addr and returns its base WebSocket URL.
func serve(t *testing.T, hub *Hub, addr string) string {
	t.Helper()

	app := hub.App()
	go app.Listen(addr)
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)

	return "ws://localhost" + addr
}

func readMessage(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage(%q) error: %v", data, err)
	}
	return msg
}

func TestStreamAck(t *testing.T) {
	hub := NewHub(WithLogger(quiet))
	base := serve(t, hub, ":18090")

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/ingest/ack-test", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	hello := readMessage(t, ws)
	if hello.Type != protocol.TypeHello {
		t.Fatalf("first message type = %s, want hello", hello.Type)
	}
	hd, _ := hello.GetHelloData()
	if hd.StreamID != "ack-test" || hd.Encoding != protocol.EncodingFloat32 {
		t.Errorf("hello = %+v", hd)
	}

	if hub.StreamCount() != 1 {
		t.Errorf("StreamCount = %d, want 1", hub.StreamCount())
	}
	if hub.GetStream("ack-test") == nil {
		t.Error("GetStream should return the connected stream")
	}

	ws.WriteMessage(websocket.TextMessage, []byte(chunkcodec.Encode([]int16{16384, -8192, 0, 100})))

	msg := readMessage(t, ws)
	if msg.Type != protocol.TypeAck {
		t.Fatalf("Type = %s, want ack", msg.Type)
	}
	ack, err := msg.GetAckData()
	if err != nil {
		t.Fatalf("GetAckData error: %v", err)
	}
	want := &protocol.AckData{StreamID: "ack-test", Seq: 1, Samples: 4, DurationMs: 0.25, Peak: 0.5}
	if diff := cmp.Diff(want, ack); diff != "" {
		t.Errorf("ack mismatch (-want +got):\n%s", diff)
	}

	infos := hub.GetStreamInfos()
	if len(infos) != 1 || infos[0].Chunks != 1 || infos[0].Samples != 4 {
		t.Errorf("stream infos = %+v", infos)
	}
}

func TestDecodeError(t *testing.T) {
	hub := NewHub(WithLogger(quiet))
	base := serve(t, hub, ":18091")

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/ingest", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	readMessage(t, ws) // hello

	ws.WriteMessage(websocket.TextMessage, []byte("not base64!"))
	msg := readMessage(t, ws)
	if msg.Type != protocol.TypeError {
		t.Fatalf("Type = %s, want error", msg.Type)
	}
	ed, _ := msg.GetErrorData()
	if ed.Seq != 1 || ed.Error == "" {
		t.Errorf("error data = %+v", ed)
	}

	ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4})
	msg = readMessage(t, ws)
	if ed, _ := msg.GetErrorData(); msg.Type != protocol.TypeError || ed.Error != ErrBinaryFrame.Error() {
		t.Errorf("binary frame reply = %s %+v", msg.Type, ed)
	}

	if stats := hub.GetStats(); stats.DecodeErrors != 2 || stats.ChunksReceived != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPlainAcks(t *testing.T) {
	hub := NewHub(WithLogger(quiet), WithPlainAcks(true))
	base := serve(t, hub, ":18092")

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/ingest", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	ws.WriteMessage(websocket.TextMessage, []byte(chunkcodec.Encode([]int16{1, 2, 3})))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(data) != PlainAck {
		t.Errorf("reply = %q, want %q", data, PlainAck)
	}
}

func TestDisconnect(t *testing.T) {
	hub := NewHub(WithLogger(quiet))
	base := serve(t, hub, ":18093")

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/ingest/bye", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	readMessage(t, ws)

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if hub.StreamCount() != 0 {
		t.Errorf("StreamCount = %d, want 0 after disconnect", hub.StreamCount())
	}
	if served := hub.GetStats().StreamsServed; served != 1 {
		t.Errorf("StreamsServed = %d, want 1", served)
	}
}

func writeRamp(t *testing.T, frames int) (string, []int16) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ramp.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	pcm := make([]int16, frames)
	data := make([]int, frames)
	for i := range pcm {
		pcm[i] = int16((i*37)%65536 - 32768)
		data[i] = int(pcm[i])
	}

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: 16000}, Data: data, SourceBitDepth: 16}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path, pcm
}

func TestEndToEnd(t *testing.T) {
	hub := NewHub(WithLogger(quiet))

	var mu sync.Mutex
	var got []float32
	var seqs []int64
	hub.OnChunk(func(_ string, seq int64, samples []float32) {
		mu.Lock()
		got = append(got, samples...)
		seqs = append(seqs, seq)
		mu.Unlock()
	})

	base := serve(t, hub, ":18094")

	path, pcm := writeRamp(t, 4000)
	src, err := audiosource.Open(audiosource.Config{
		Path:          path,
		ChunkDuration: 100 * time.Millisecond,
		SampleRate:    16000,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var replies sync.WaitGroup
	replies.Add(1)
	var once sync.Once
	session := streaming.NewSession(src, transport.NewWebSocket(transport.WithLogger(quiet)), base+"/ws/ingest",
		streaming.WithLogger(quiet),
		streaming.WithPacing(streaming.PacingDeadline),
		streaming.WithMessageHandler(func(m streaming.Message) {
			if m.Structured {
				once.Do(replies.Done)
			}
		}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	replies.Wait()

	if sent := session.Stats().ChunksSent; sent != 3 {
		t.Errorf("ChunksSent = %d, want 3", sent)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetStats().ChunksReceived < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]int64{1, 2, 3}, seqs); diff != "" {
		t.Errorf("chunk sequence mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pcm, chunkcodec.ToPCM16(got)); diff != "" {
		t.Errorf("received audio differs from file (-want +got):\n%s", diff)
	}
}

package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/oauth2"
)

// docServer fakes the document-store wire protocol for client tests.
type docServer struct {
	mu      sync.Mutex
	docs    map[string]map[string]any
	auth    []string // Authorization header of each request
	deletes []string
}

func newDocServer() *docServer {
	return &docServer{docs: make(map[string]map[string]any)}
}

func (d *docServer) handler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/v1/docs/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v1/docs/")

		d.mu.Lock()
		d.auth = append(d.auth, r.Header.Get("Authorization"))
		d.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)

			var doc map[string]any
			if err := json.Unmarshal(body, &doc); err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}

			d.mu.Lock()
			d.docs[path] = doc
			d.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)

		case http.MethodDelete:
			d.mu.Lock()
			_, existed := d.docs[path]
			delete(d.docs, path)
			d.deletes = append(d.deletes, path)
			d.mu.Unlock()

			if !existed {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}

			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "method", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/v1/watch/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v1/watch/")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		defer conn.CloseNow()

		ctx := r.Context()

		d.mu.Lock()
		current := d.docs[path]
		d.mu.Unlock()

		// Initial snapshot, then one simulated remote change.
		if err := wsjson.Write(ctx, conn, watchFrame{ID: DocID(path), Data: current}); err != nil {
			return
		}

		if err := wsjson.Write(ctx, conn, watchFrame{ID: DocID(path), Data: map[string]any{"v": 2}}); err != nil {
			return
		}

		// Hold the stream open until the client disconnects.
		_, _, _ = conn.Read(ctx)
	})

	return mux
}

func newTestClient(t *testing.T) (*Client, *docServer) {
	t.Helper()

	d := newDocServer()
	srv := httptest.NewServer(d.handler(t))
	t.Cleanup(srv.Close)

	token := func() *oauth2.Token {
		return &oauth2.Token{AccessToken: "wire-test-token", TokenType: "Bearer"}
	}

	return NewClient(srv.URL, srv.Client(), token, testLogger(t)), d
}

func TestClientSet_WritesDocWithAuth(t *testing.T) {
	t.Parallel()

	c, d := newTestClient(t)

	err := c.Set(context.Background(), "users/uid-1", map[string]any{"v": float64(1)})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.docs["users/uid-1"]["v"] != float64(1) {
		t.Errorf("stored doc = %v", d.docs["users/uid-1"])
	}

	if len(d.auth) != 1 || d.auth[0] != "Bearer wire-test-token" {
		t.Errorf("auth headers = %v", d.auth)
	}
}

func TestClientDelete_AbsentDocIsNotAnError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)

	if err := c.Delete(context.Background(), "users/nobody"); err != nil {
		t.Errorf("Delete absent doc: %v", err)
	}
}

func TestClientSubscribe_DeliversFramesUntilCancel(t *testing.T) {
	t.Parallel()

	c, d := newTestClient(t)

	d.mu.Lock()
	d.docs["users/uid-1"] = map[string]any{"v": float64(1)}
	d.mu.Unlock()

	log := newSnapshotLog()

	cancel, err := c.Subscribe(context.Background(), "users/uid-1", log.watch)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Initial snapshot plus the simulated change.
	waitFor(t, func() bool { return log.count() == 2 })

	if log.last()["v"] != float64(2) {
		t.Errorf("last frame = %v, want v=2", log.last())
	}

	cancel()

	count := log.count()

	time.Sleep(50 * time.Millisecond)

	if log.count() != count {
		t.Errorf("callbacks after cancel: %d", log.count()-count)
	}
}

func TestClientSubscribe_DialFailure(t *testing.T) {
	t.Parallel()

	c := NewClient("http://127.0.0.1:1", &http.Client{Timeout: time.Second},
		func() *oauth2.Token { return nil }, testLogger(t))

	if _, err := c.Subscribe(context.Background(), "users/uid-1", func(string, map[string]any) {}); err == nil {
		t.Fatal("Subscribe against dead server succeeded")
	}
}

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Group6Cameo/go-cameo/pkg/tracking"
)

type stubTracker struct {
	status tracking.Status
}

func (s *stubTracker) Status() tracking.Status {
	return s.status
}

type stubStore struct {
	mu  sync.Mutex
	id  string
	err error
}

func (s *stubStore) Read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.err
}

func (s *stubStore) Write(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.id = id
	return nil
}

func newServerForTest() (*Server, *stubStore) {
	store := &stubStore{id: "1"}
	tracker := &stubTracker{status: tracking.Status{
		ActiveTarget: "1",
		LastManual:   "1",
		TiltAngle:    90,
		PanAngle:     95,
		ArmAngle:     90,
		Running:      true,
	}}
	return NewServer(":0", tracker, store), store
}

func TestServer_Health(t *testing.T) {
	s, _ := newServerForTest()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "healthy") {
		t.Errorf("body = %s, want healthy", body)
	}
}

func TestServer_StatusEndpoint(t *testing.T) {
	s, _ := newServerForTest()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["active_target"] != "1" {
		t.Errorf("active_target = %v, want 1", got["active_target"])
	}
	if got["pan_angle"] != 95.0 {
		t.Errorf("pan_angle = %v, want 95", got["pan_angle"])
	}
	if got["running"] != true {
		t.Errorf("running = %v, want true", got["running"])
	}
}

func TestServer_TargetRoundTrip(t *testing.T) {
	s, store := newServerForTest()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/target", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"id":"1"`) {
		t.Errorf("GET body = %s, want id 1", body)
	}

	req := httptest.NewRequest("POST", "/api/target", strings.NewReader(`{"id":" 5 "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("POST status = %d, want 200", resp.StatusCode)
	}
	if id, _ := store.Read(); id != "5" {
		t.Errorf("store id = %q, want trimmed 5", id)
	}
}

func TestServer_TargetRejectsBadRequests(t *testing.T) {
	s, store := newServerForTest()

	req := httptest.NewRequest("POST", "/api/target", strings.NewReader(`{"id":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("empty id status = %d, want 400", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/target", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("bad body status = %d, want 400", resp.StatusCode)
	}

	store.err = errors.New("disk full")
	req = httptest.NewRequest("POST", "/api/target", strings.NewReader(`{"id":"3"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Errorf("store failure status = %d, want 500", resp.StatusCode)
	}
}

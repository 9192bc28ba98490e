package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// statusError is a device error with an HTTP status.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string   { return e.message }
func (e *statusError) HTTPStatus() int { return e.status }

type call struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// mockDevice records calls and serves canned Get responses.
type mockDevice struct {
	mu      sync.Mutex
	calls   []call
	objects map[string]string
	fail    map[string]error
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		objects: map[string]string{
			PathManagementDHCP: `{"requestOptions":["subnet-mask","broadcast-address","routers","domain-name","domain-name-servers","host-name","ntp-servers"]}`,
		},
		fail: make(map[string]error),
	}
}

func (m *mockDevice) record(method, path string, body interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var decoded map[string]interface{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return err
		}
	}
	m.calls = append(m.calls, call{Method: method, Path: path, Body: decoded})
	return m.fail[method+" "+path]
}

func (m *mockDevice) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := m.record("GET", path, nil); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, &statusError{status: http.StatusNotFound, message: fmt.Sprintf("no object at %s", path)}
	}
	return json.RawMessage(obj), nil
}

func (m *mockDevice) Create(ctx context.Context, path string, body interface{}) error {
	return m.record("POST", path, body)
}

func (m *mockDevice) Modify(ctx context.Context, path string, body interface{}) error {
	return m.record("PATCH", path, body)
}

func (m *mockDevice) Replace(ctx context.Context, path string, body interface{}) error {
	return m.record("PUT", path, body)
}

func (m *mockDevice) Calls() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]call, len(m.calls))
	copy(out, m.calls)
	return out
}

// writes returns the non-GET calls.
func (m *mockDevice) writes() []call {
	var out []call
	for _, c := range m.Calls() {
		if c.Method != "GET" {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockDevice) find(method, path string) (call, bool) {
	for _, c := range m.Calls() {
		if c.Method == method && c.Path == path {
			return c, true
		}
	}
	return call{}, false
}

type mockResolver struct {
	known map[string][]string
}

func (r *mockResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := r.known[host]; ok {
		return addrs, nil
	}
	return nil, fmt.Errorf("lookup %s: no such host", host)
}

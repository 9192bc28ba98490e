package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Mock remote client for testing
type mockClient struct {
	mu           sync.Mutex
	events       []string
	deleted      []string
	fetched      []string
	transactions [][]TransactionOp
	deviceGroups []string

	inflight    int32
	maxInflight int32

	// listFn answers List calls. Defaults to reporting the system-auth profile.
	listFn func(path string) (json.RawMessage, error)

	// deleteErr returns the error for a path, if any.
	deleteErr func(path string) error

	// delay returns how long a remote call to target should take.
	delay func(target string) time.Duration

	transactionErr error

	// silent skips the Issued signal, like a client that cannot report it.
	silent bool
}

func newMockClient() *mockClient {
	return &mockClient{
		listFn: func(string) (json.RawMessage, error) {
			return json.RawMessage(`[{"name":"system-auth","fullPath":"/Common/system-auth"}]`), nil
		},
	}
}

func (m *mockClient) begin(target string) {
	n := atomic.AddInt32(&m.inflight, 1)
	for {
		cur := atomic.LoadInt32(&m.maxInflight)
		if n <= cur || atomic.CompareAndSwapInt32(&m.maxInflight, cur, n) {
			break
		}
	}
	m.mu.Lock()
	m.events = append(m.events, "start "+target)
	m.mu.Unlock()

	if m.delay != nil {
		if d := m.delay(target); d > 0 {
			time.Sleep(d)
		}
	}
}

func (m *mockClient) issued(ctx context.Context) {
	if !m.silent {
		Issued(ctx)
	}
}

func (m *mockClient) end(target string) {
	atomic.AddInt32(&m.inflight, -1)
	m.mu.Lock()
	m.events = append(m.events, "end "+target)
	m.mu.Unlock()
}

func (m *mockClient) List(ctx context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, path)
	m.mu.Unlock()
	return m.listFn(path)
}

func (m *mockClient) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, path)
	m.mu.Unlock()
	m.issued(ctx)

	m.begin(path)
	defer m.end(path)

	if m.deleteErr != nil {
		return m.deleteErr(path)
	}
	return nil
}

func (m *mockClient) Transaction(ctx context.Context, ops []TransactionOp) error {
	m.mu.Lock()
	m.transactions = append(m.transactions, append([]TransactionOp(nil), ops...))
	m.mu.Unlock()
	m.issued(ctx)

	m.begin("transaction")
	defer m.end("transaction")
	return m.transactionErr
}

func (m *mockClient) DeleteDeviceGroup(ctx context.Context, name string) error {
	m.mu.Lock()
	m.deviceGroups = append(m.deviceGroups, name)
	m.mu.Unlock()
	m.issued(ctx)

	m.begin(name)
	defer m.end(name)
	return nil
}

func (m *mockClient) getDeleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.deleted...)
}

func (m *mockClient) getFetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.fetched...)
}

func (m *mockClient) getEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.events...)
}

// settledBefore reports whether every call whose target contains first ended
// before any call whose target contains second started.
func settledBefore(events []string, first, second string) bool {
	lastEnd, firstStart := -1, len(events)
	for i, e := range events {
		switch {
		case strings.HasPrefix(e, "end ") && strings.Contains(e, first):
			lastEnd = i
		case strings.HasPrefix(e, "start ") && strings.Contains(e, second) && i < firstStart:
			firstStart = i
		}
	}
	return lastEnd < firstStart
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mustParse decodes a declaration literal for tests.
func mustParse(s string) Declaration {
	d, err := ParseDeclaration([]byte(s))
	if err != nil {
		panic(err)
	}
	return d
}

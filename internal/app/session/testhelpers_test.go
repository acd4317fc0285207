package session

import (
	"context"
	"sync"
	"time"

	"warelay/internal/app/storage"
	"warelay/internal/app/store"
)

// memBlob is an in-memory BlobStore for tests.
type memBlob struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{blobs: make(map[string][]byte)}
}

func (m *memBlob) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memBlob) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlob) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// fakeClient is a scriptable ProtocolClient.
type fakeClient struct {
	mu         sync.Mutex
	events     chan Event
	detached   bool
	disconnect int
	connects   int
	connectErr error
	groups     []store.ChatRecord
	groupsErr  error
	sent       []sentText
	sendErr    error
}

type sentText struct {
	ChatID string
	Text   string
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan Event, 16)}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnect++
}

func (f *fakeClient) Logout(ctx context.Context) error { return nil }

func (f *fakeClient) SendText(ctx context.Context, chatID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentText{ChatID: chatID, Text: text})
	return "msg-1", nil
}

func (f *fakeClient) JoinedGroups(ctx context.Context) ([]store.ChatRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups, f.groupsErr
}

func (f *fakeClient) Events() <-chan Event { return f.events }

func (f *fakeClient) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detached {
		return
	}
	f.detached = true
	close(f.events)
}

// emit queues an event unless the client was already detached.
func (f *fakeClient) emit(evt Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detached {
		return
	}
	f.events <- evt
}

func (f *fakeClient) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeClient) isDetached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detached
}

func (f *fakeClient) sentMessages() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.sent...)
}

// fakeFactory hands out prepared clients in order, repeating the last one.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	calls   int
	err     error
}

func (f *fakeFactory) NewClient(ctx context.Context, userID string) (ProtocolClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.clients) {
		idx = len(f.clients) - 1
	}
	return f.clients[idx], nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCreds records credential-store calls.
type fakeCreds struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{saved: make(map[string][]byte)}
}

func (f *fakeCreds) Save(ctx context.Context, userID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[userID] = append([]byte(nil), data...)
	return nil
}

func (f *fakeCreds) Delete(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakeCreds) savedFor(userID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[userID]
}

func (f *fakeCreds) deletedUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// fakeNotifier records every outbound notification.
type fakeNotifier struct {
	mu       sync.Mutex
	qrs      []string
	statuses []string
	messages []store.Message
	groups   [][]store.ChatRecord
	acks     []string
	errors   []string
}

func newFakeNotifier() *fakeNotifier { return &fakeNotifier{} }

func (f *fakeNotifier) QR(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrs = append(f.qrs, code)
}

func (f *fakeNotifier) Status(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeNotifier) Message(msg store.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeNotifier) Groups(groups []store.ChatRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, groups)
}

func (f *fakeNotifier) MessageStatus(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, status)
}

func (f *fakeNotifier) Error(description string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, description)
}

func (f *fakeNotifier) statusList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

func (f *fakeNotifier) messageList() []store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Message(nil), f.messages...)
}

// blockingNotifier parks the session event goroutine inside the QR handler:
// QR signals entered, then waits for the gate. It lets a test queue further
// events behind a handler that is still in flight.
type blockingNotifier struct {
	*fakeNotifier
	entered chan struct{}
	gate    chan struct{}
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{
		fakeNotifier: newFakeNotifier(),
		entered:      make(chan struct{}, 1),
		gate:         make(chan struct{}),
	}
}

func (b *blockingNotifier) QR(code string) {
	b.entered <- struct{}{}
	<-b.gate
	b.fakeNotifier.QR(code)
}

// newTestManager wires a Manager over fakes with a fast retry policy.
func newTestManager(factory ClientFactory, creds CredentialStore) (*Manager, *store.Manager) {
	stores := store.NewManager(newMemBlob(), time.Hour)
	m := NewManager(factory, creds, stores, Config{
		Retry: RetryPolicy{
			Backoff:     time.Millisecond,
			BackoffMax:  5 * time.Millisecond,
			MaxAttempts: 0,
		},
		ConnectTimeout: time.Second,
	})
	return m, stores
}

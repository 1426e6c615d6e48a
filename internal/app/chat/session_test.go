package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dmchat/internal/app/db"
	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/auth/jwt"
)

const waitFor = 2 * time.Second

type testServer struct {
	t       *testing.T
	store   *db.MemoryStore
	manager *Manager
	server  *httptest.Server
}

func newTestServer(t *testing.T, messages MessageStore, opts Options) *testServer {
	t.Helper()

	store := db.NewMemoryStore()
	if messages == nil {
		messages = store
	}

	manager := NewManager(NewResolver(jwt.NewVerifier(testSecret), store), messages, opts)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		manager.Serve(conn, r.URL.Query().Get("token"))
	}))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = manager.Shutdown(ctx)
		server.Close()
	})

	return &testServer{t: t, store: store, manager: manager, server: server}
}

func (s *testServer) createUser(name string) user.User {
	s.t.Helper()

	u, err := s.store.CreateUser(context.Background(), db.CreateUserParams{Username: name, Email: name + "@example.com"})
	require.NoError(s.t, err)
	return u
}

func (s *testServer) token(u user.User) string {
	s.t.Helper()

	token, err := jwt.GenerateToken(u.Username, u.ID, testSecret, time.Minute)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) dialRaw(token string) *websocket.Conn {
	s.t.Helper()

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// connect dials as u and waits until the session is registered.
func (s *testServer) connect(u user.User) *websocket.Conn {
	s.t.Helper()

	conn := s.dialRaw(s.token(u))
	require.Eventually(s.t, func() bool { return s.manager.Registry().IsConnected(u.ID) }, waitFor, 5*time.Millisecond)
	return conn
}

type frame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.True(t, errors.As(err, &closeErr), "expected close error, got %v", err)
		require.Equal(t, code, closeErr.Code)
		return
	}
}

func TestSession_RoundTripDelivered(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{})
	alice, bob := s.createUser("alice"), s.createUser("bob")
	aliceConn, bobConn := s.connect(alice), s.connect(bob)

	// When: alice sends to a connected bob
	req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": bob.ID, "content": "hello bob"}))

	// Then: bob sees new_message and alice gets a delivered acknowledgment for the same message
	notification := readFrame(t, bobConn)
	req.Equal(TypeNewMessage, notification.Type)

	var got NotificationData
	req.NoError(json.Unmarshal(notification.Data, &got))
	req.Equal("hello bob", got.Content)
	req.Equal(alice.ID, got.SenderID)
	req.Equal("alice", got.Sender.Username)

	ack := readFrame(t, aliceConn)
	req.Equal(TypeMessageStatus, ack.Type)

	var status StatusData
	req.NoError(json.Unmarshal(ack.Data, &status))
	req.Equal(StatusDelivered, status.Status)
	req.Equal(got.ID, status.Message.ID)
	req.Equal(got.Content, status.Message.Content)
	req.False(status.Message.IsRead)
}

func TestSession_OfflineRecipientIsSentAndPersisted(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{})
	alice, bob := s.createUser("alice"), s.createUser("bob")
	aliceConn := s.connect(alice)

	req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": bob.ID, "content": "are you there"}))

	ack := readFrame(t, aliceConn)
	var status StatusData
	req.NoError(json.Unmarshal(ack.Data, &status))
	req.Equal(StatusSent, status.Status)

	history, err := s.store.ListMessages(context.Background(), message.Filter{UserID: bob.ID})
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(status.Message.ID, history[0].ID)
	req.Equal("are you there", history[0].Content)
}

func TestSession_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{})
	alice, bob := s.createUser("alice"), s.createUser("bob")
	aliceConn := s.connect(alice)

	req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": bob.ID}))
	req.Equal(ErrTextInvalidFormat, readFrame(t, aliceConn).Error)

	req.NoError(aliceConn.WriteMessage(websocket.TextMessage, []byte("not json")))
	req.Equal(ErrTextInvalidFormat, readFrame(t, aliceConn).Error)

	// Then: a subsequent valid frame is still accepted
	req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": bob.ID, "content": "second try"}))
	req.Equal(TypeMessageStatus, readFrame(t, aliceConn).Type)

	count, err := s.store.CountUnread(context.Background(), bob.ID)
	req.NoError(err)
	req.Equal(int64(1), count)
}

func TestSession_UnknownReceiverReportsSaveFailure(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{})
	alice := s.createUser("alice")
	aliceConn := s.connect(alice)

	req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": 999, "content": "hi"}))
	req.Equal(ErrTextSaveFailed, readFrame(t, aliceConn).Error)
	req.True(s.manager.Registry().IsConnected(alice.ID))
}

type failingStore struct{}

func (failingStore) CreateMessage(context.Context, message.New) (message.Message, error) {
	return message.Message{}, errors.New("database is down")
}

func TestSession_PersistenceFailureContinuesLoop(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, failingStore{}, Options{})
	alice, bob := s.createUser("alice"), s.createUser("bob")
	aliceConn, bobConn := s.connect(alice), s.connect(bob)

	for range 2 {
		req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": bob.ID, "content": "hi"}))
		req.Equal(ErrTextSaveFailed, readFrame(t, aliceConn).Error)
	}

	// Then: nothing was delivered to bob
	req.NoError(bobConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)))
	_, _, err := bobConn.ReadMessage()
	req.Error(err)
}

type panickingStore struct{}

func (panickingStore) CreateMessage(context.Context, message.New) (message.Message, error) {
	panic("boom")
}

func TestSession_PanicStillDeregisters(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, panickingStore{}, Options{})
	alice, bob := s.createUser("alice"), s.createUser("bob")
	aliceConn := s.connect(alice)

	req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": bob.ID, "content": "hi"}))

	// Then: the session is released and its connection closed
	req.Eventually(func() bool { return !s.manager.Registry().IsConnected(alice.ID) }, waitFor, 5*time.Millisecond)

	req.NoError(aliceConn.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err := aliceConn.ReadMessage()
	req.Error(err)

	// And: the server keeps accepting sessions
	s.connect(bob)
}

func TestSession_AuthenticationFailureIsRefused(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	carol := s.createUser("carol")
	require.NoError(t, s.store.SetActive(carol.ID, false))

	credentials := map[string]string{
		"missing":  "",
		"garbage":  "abc.def.ghi",
		"inactive": s.token(carol),
		"unknown":  s.token(user.User{Username: "mallory"}),
	}

	for name, credential := range credentials {
		t.Run(name, func(t *testing.T) {
			conn := s.dialRaw(credential)
			expectClose(t, conn, websocket.ClosePolicyViolation)
			require.Empty(t, s.manager.Registry().ConnectedIDs())
		})
	}
}

func TestSession_ReplacementClosesPreviousConnection(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{})
	alice, bob := s.createUser("alice"), s.createUser("bob")

	first := s.connect(bob)
	second := s.dialRaw(s.token(bob))

	// Then: the first connection is told it was replaced
	expectClose(t, first, CloseCodeSessionReplaced)

	// And: the replaced session ending did not evict the new one
	req.Eventually(func() bool { return s.manager.Registry().IsConnected(bob.ID) }, waitFor, 5*time.Millisecond)
	req.Equal(1, s.manager.Registry().Len())

	aliceConn := s.connect(alice)
	req.NoError(aliceConn.WriteJSON(map[string]any{"receiver_id": bob.ID, "content": "to the new one"}))

	f := readFrame(t, second)
	req.Equal(TypeNewMessage, f.Type)
	req.Equal(TypeMessageStatus, readFrame(t, aliceConn).Type)
}

func TestSession_DisconnectDeregisters(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	alice := s.createUser("alice")
	conn := s.connect(alice)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !s.manager.Registry().IsConnected(alice.ID) }, waitFor, 5*time.Millisecond)
}

func TestSession_SilentPeerTimesOut(t *testing.T) {
	s := newTestServer(t, nil, Options{PongWait: 200 * time.Millisecond})
	alice := s.createUser("alice")
	// The dialer answers pings only while the client reads, so a client that never reads goes silent
	s.connect(alice)

	require.Eventually(t, func() bool { return !s.manager.Registry().IsConnected(alice.ID) }, waitFor, 10*time.Millisecond)
}

func TestSession_PresenceEvents(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{PresenceEvents: true})
	alice, bob := s.createUser("alice"), s.createUser("bob")
	aliceConn := s.connect(alice)

	bobConn := s.connect(bob)

	online := readFrame(t, aliceConn)
	req.Equal(TypeUserOnline, online.Type)
	var data PresenceData
	req.NoError(json.Unmarshal(online.Data, &data))
	req.Equal(bob.ID, data.UserID)

	req.NoError(bobConn.Close())

	offline := readFrame(t, aliceConn)
	req.Equal(TypeUserOffline, offline.Type)
	req.NoError(json.Unmarshal(offline.Data, &data))
	req.Equal(bob.ID, data.UserID)
}

func TestSession_EvictedSessionIsAnnouncedOffline(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{PresenceEvents: true})
	alice := s.createUser("alice")
	aliceConn := s.connect(alice)

	s.manager.Registry().Register(99, &fakeHandle{fail: true})

	// When: a write to the broken session fails and removes it
	req.False(s.manager.Registry().Unicast(99, []byte(`{}`)))

	offline := readFrame(t, aliceConn)
	req.Equal(TypeUserOffline, offline.Type)
	var data PresenceData
	req.NoError(json.Unmarshal(offline.Data, &data))
	req.Equal(int64(99), data.UserID)
}

func TestManager_ShutdownClosesSessions(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil, Options{})
	alice, bob := s.createUser("alice"), s.createUser("bob")
	aliceConn, bobConn := s.connect(alice), s.connect(bob)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	req.NoError(s.manager.Shutdown(ctx))

	expectClose(t, aliceConn, websocket.CloseGoingAway)
	expectClose(t, bobConn, websocket.CloseGoingAway)
	req.Zero(s.manager.Registry().Len())

	// New connections are refused once shutdown has begun
	late := s.dialRaw(s.token(alice))
	expectClose(t, late, websocket.CloseGoingAway)
}

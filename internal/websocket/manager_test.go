package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/auth"
	"github.com/parsascontentcorner/linkgate/internal/linking"
)

var testSecret = []byte(strings.Repeat("k", 32))

type feedFixture struct {
	t       *testing.T
	events  *linking.Broadcaster
	tokens  *auth.ServiceTokens
	manager *Manager
	server  *httptest.Server
	cancel  context.CancelFunc
	done    chan struct{}
}

func newFeedFixture(t *testing.T, opts ...Option) *feedFixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	events := linking.NewBroadcaster(logger)
	tokens := auth.NewServiceTokens(testSecret)
	manager := NewManager(events, tokens, logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	f := &feedFixture{
		t:       t,
		events:  events,
		tokens:  tokens,
		manager: manager,
		server:  httptest.NewServer(manager),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		manager.Run(ctx)
	}()

	t.Cleanup(f.close)
	return f
}

func (f *feedFixture) close() {
	f.cancel()
	<-f.done
	f.server.Close()
}

func (f *feedFixture) token(scopes ...string) string {
	f.t.Helper()
	token, err := f.tokens.Issue("chat-bot", scopes, time.Minute)
	require.NoError(f.t, err)
	return token
}

func (f *feedFixture) dial(token, query string) (*gorilla.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/" + query
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return gorilla.DefaultDialer.Dial(url, header)
}

// connect dials and waits until the manager has registered the client
func (f *feedFixture) connect(query string) *gorilla.Conn {
	f.t.Helper()
	before := f.manager.Len()
	conn, _, err := f.dial(f.token(auth.ScopeLinksRead), query)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(f.t, func() bool { return f.manager.Len() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestManager_PushesEvents(t *testing.T) {
	f := newFeedFixture(t)
	conn := f.connect("")

	playerID := uuid.New()
	f.events.Publish(linking.Event{Kind: linking.EventTicketCreated, PlayerID: playerID, DiscordID: "42"})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeLinkEvent, msg.Type)
	assert.Equal(t, linking.EventTicketCreated, msg.Event.Kind)
	assert.Equal(t, playerID, msg.Event.PlayerID)
	assert.Equal(t, "42", msg.Event.DiscordID)
}

func TestManager_PlayerFilter(t *testing.T) {
	f := newFeedFixture(t)
	watched := uuid.New()
	conn := f.connect("?player=" + watched.String())

	f.events.Publish(linking.Event{Kind: linking.EventTicketCreated, PlayerID: uuid.New()})
	f.events.Publish(linking.Event{Kind: linking.EventTicketConsumed, PlayerID: watched})

	msg := readMessage(t, conn)
	assert.Equal(t, linking.EventTicketConsumed, msg.Event.Kind)
	assert.Equal(t, watched, msg.Event.PlayerID)
}

func TestManager_RejectsHandshake(t *testing.T) {
	f := newFeedFixture(t)

	expired, err := f.tokens.Issue("chat-bot", []string{auth.ScopeLinksRead}, -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.NewServiceTokens([]byte(strings.Repeat("x", 32))).Issue("chat-bot", []string{auth.ScopeLinksRead}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		query      string
		wantStatus int
	}{
		{name: "no token", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "expired token", token: expired, wantStatus: http.StatusUnauthorized},
		{name: "foreign secret", token: foreign, wantStatus: http.StatusUnauthorized},
		{name: "missing scope", token: f.token(auth.ScopeLinksWrite), wantStatus: http.StatusForbidden},
		{name: "bad player filter", token: f.token(auth.ScopeLinksRead), query: "?player=nope", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := f.dial(tt.token, tt.query)
			if conn != nil {
				_ = conn.Close()
			}
			require.ErrorIs(t, err, gorilla.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
	assert.Zero(t, f.manager.Len())
}

func TestManager_WildcardScope(t *testing.T) {
	f := newFeedFixture(t)
	conn, _, err := f.dial(f.token("*"), "")
	require.NoError(t, err)
	defer conn.Close()
}

func TestManager_ClientDisconnect(t *testing.T) {
	f := newFeedFixture(t)
	conn := f.connect("")

	require.NoError(t, conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "")))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return f.manager.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_CloseDisconnectsClients(t *testing.T) {
	f := newFeedFixture(t)
	conn := f.connect("")

	f.cancel()
	<-f.done

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseGoingAway), "unexpected error: %v", err)
	assert.Zero(t, f.manager.Len())
}

func TestManager_Pings(t *testing.T) {
	f := newFeedFixture(t, WithPingInterval(20*time.Millisecond))
	conn := f.connect("")

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestClient_Wants(t *testing.T) {
	playerID := uuid.New()

	all := &client{}
	one := &client{player: playerID}

	assert.True(t, all.wants(linking.Event{PlayerID: uuid.New()}))
	assert.True(t, one.wants(linking.Event{PlayerID: playerID}))
	assert.False(t, one.wants(linking.Event{PlayerID: uuid.New()}))
}

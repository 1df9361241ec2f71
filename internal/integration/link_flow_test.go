// Package integration exercises the callback server, the link service and the gate
// together against a real document store and mock OAuth providers.
package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/auth"
	"github.com/parsascontentcorner/linkgate/internal/config"
	"github.com/parsascontentcorner/linkgate/internal/database"
	"github.com/parsascontentcorner/linkgate/internal/gate"
	"github.com/parsascontentcorner/linkgate/internal/linking"
	"github.com/parsascontentcorner/linkgate/internal/oauth"
	"github.com/parsascontentcorner/linkgate/internal/ratelimit"
	"github.com/parsascontentcorner/linkgate/internal/testutil"
	"github.com/parsascontentcorner/linkgate/internal/world"
	"github.com/parsascontentcorner/linkgate/internal/world/worldtest"
)

var (
	spawn = world.Location{World: "overworld", X: 10, Y: 70, Z: 10}
	home  = world.Location{World: "overworld", X: 250, Y: 80, Z: -40}
)

// stack is a running linkgate: callback server, link service and a hosted gate
type stack struct {
	t        *testing.T
	cfg      *config.Config
	service  *linking.Service
	host     *gate.Host
	urls     *auth.LinkURLs
	server   *worldtest.FakeServer
	callback *httptest.Server
	cancel   context.CancelFunc
	done     chan error
}

func startStack(t *testing.T, store database.DocumentStore, mock *testutil.MockProviderServer) *stack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	cfg := testutil.GenerateTestConfig(mock.URL())

	service := linking.NewService(store, linking.Config{
		TicketTTL:    cfg.Link.TicketTTL,
		RankProvider: cfg.Rank.Provider,
		RankOptional: cfg.Rank.Optional,
		Messages:     linking.DefaultMessages(),
	}, logger)

	discord := auth.NewDiscordClient(&cfg.Discord, logger)
	discord.SetBaseURL(mock.URL())
	providers := auth.NewProviders(discord, auth.NewRankClient(&cfg.Rank, logger))
	codec := auth.NewStateCodec(cfg.Security.StateSecret, cfg.Security.StateSecretVersion)
	urls := auth.NewLinkURLs(codec, providers)
	flow := auth.NewLinkFlow(codec, providers, service, cfg.Security.StateExpiry(), logger)

	handlers := oauth.NewHandlers(flow, ratelimit.NewClientLimiter(cfg.Security.CallbackRateLimit, logger), nil, logger)
	callback := httptest.NewServer(oauth.NewMux(handlers, oauth.ServerOptions{}))

	server := worldtest.NewFakeServer(spawn, "limbo")
	host := gate.NewHost(gate.NewConfig(&cfg.Gate, &cfg.Rank), service, urls, server, cfg.Gate.LoopQueueSize, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &stack{
		t:        t,
		cfg:      cfg,
		service:  service,
		host:     host,
		urls:     urls,
		server:   server,
		callback: callback,
		cancel:   cancel,
		done:     make(chan error, 1),
	}
	go func() { s.done <- host.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-s.done)
		callback.Close()
	})
	return s
}

// join runs the handshake check and materializes the player in the world
func (s *stack) join(p *worldtest.FakePlayer) {
	s.t.Helper()
	g := s.host.Gate()
	g.BeginCheck(context.Background(), p.Conn(), p.ID(), p.Name())
	g.Wait()

	s.server.Add(p)
	_, err := s.host.Bus().Post(context.Background(), &world.JoinEvent{Player: p})
	require.NoError(s.t, err)
}

func (s *stack) waitState(p world.Player, want gate.State) {
	s.t.Helper()
	require.Eventually(s.t, func() bool {
		state, ok := s.host.Gate().State(p.Conn())
		return ok && state == want
	}, 5*time.Second, 10*time.Millisecond, "waiting for %s", want)
}

// waitLink waits until p was shown at least n links for provider and returns the
// state token of the newest one
func (s *stack) waitLink(p *worldtest.FakePlayer, provider string, n int) string {
	s.t.Helper()
	host := s.authHost(provider)
	var token string
	require.Eventually(s.t, func() bool {
		var tokens []string
		for _, link := range p.Links() {
			u, err := url.Parse(link.URL)
			if err != nil || u.Host != host {
				continue
			}
			if state := u.Query().Get("state"); state != "" {
				tokens = append(tokens, state)
			}
		}
		if len(tokens) < n {
			return false
		}
		token = tokens[len(tokens)-1]
		return true
	}, 5*time.Second, 10*time.Millisecond, "waiting for %s link", provider)
	return token
}

// stateFor issues a fresh state token the way the bot does, outside any prompt
func (s *stack) stateFor(p world.Player, provider, discordID string) string {
	s.t.Helper()
	link, err := s.urls.URL(provider, p.ID(), discordID, p.Name())
	require.NoError(s.t, err)
	u, err := url.Parse(link)
	require.NoError(s.t, err)
	return u.Query().Get("state")
}

// settle waits for in-flight refreshes and the evaluations they queued
func (s *stack) settle() {
	s.t.Helper()
	s.host.Gate().Wait()
	require.NoError(s.t, s.host.Loop().Do(context.Background(), func() {}))
}

func (s *stack) authHost(provider string) string {
	if provider == auth.ProviderDiscord {
		return "discord.com"
	}
	u, err := url.Parse(s.cfg.Rank.AuthURL)
	require.NoError(s.t, err)
	return u.Host
}

// completeCallback plays the provider redirect back to the callback server
func (s *stack) completeCallback(provider, code, state string) (int, string) {
	s.t.Helper()
	q := url.Values{"code": {code}, "state": {state}}
	resp, err := http.Get(s.callback.URL + "/link/" + provider + "/callback?" + q.Encode())
	require.NoError(s.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, string(body)
}

func runLinkingScenarios(t *testing.T, newStore func(t *testing.T) database.DocumentStore) {
	t.Run("discord then rank releases the player", func(t *testing.T) {
		mock := testutil.NewMockProviderServer()
		defer mock.Close()
		s := startStack(t, newStore(t), mock)

		p := worldtest.NewFakePlayer("steve", home)
		s.join(p)
		s.waitState(p, gate.StateQuarantined)
		s.settle()
		assert.Equal(t, s.cfg.Gate.SandboxWorld, p.Location().World)

		status, body := s.completeCallback(auth.ProviderDiscord, "valid_code", s.waitLink(p, auth.ProviderDiscord, 1))
		require.Equal(t, http.StatusOK, status, body)
		assert.Contains(t, body, "Account linked!")

		// Discord is linked; the gate now offers the rank provider
		rankState := s.waitLink(p, s.cfg.Rank.Provider, 1)
		state, _ := s.host.Gate().State(p.Conn())
		assert.Equal(t, gate.StateQuarantined, state)

		linkStatus, err := s.service.LinkStatus(context.Background(), p.ID())
		require.NoError(t, err)
		assert.True(t, linkStatus.Discord)
		assert.Equal(t, testutil.MockDiscordID, linkStatus.DiscordID)
		assert.False(t, linkStatus.Rank)

		status, body = s.completeCallback(s.cfg.Rank.Provider, "valid_code", rankState)
		require.Equal(t, http.StatusOK, status, body)

		s.waitState(p, gate.StateReleased)
		assert.Equal(t, home, p.Location())

		linkStatus, err = s.service.LinkStatus(context.Background(), p.ID())
		require.NoError(t, err)
		assert.True(t, linkStatus.Complete(false))
	})

	t.Run("discord identity moves to a new player", func(t *testing.T) {
		mock := testutil.NewMockProviderServer()
		defer mock.Close()
		s := startStack(t, newStore(t), mock)

		first := worldtest.NewFakePlayer("steve", home)
		s.join(first)
		status, body := s.completeCallback(auth.ProviderDiscord, "valid_code", s.waitLink(first, auth.ProviderDiscord, 1))
		require.Equal(t, http.StatusOK, status, body)
		// the consumed ticket triggers one more refresh
		s.waitLink(first, s.cfg.Rank.Provider, 2)
		s.settle()

		second := worldtest.NewFakePlayer("alex", home)
		s.join(second)
		s.waitState(second, gate.StateQuarantined)

		status, body = s.completeCallback(auth.ProviderDiscord, "valid_code", s.waitLink(second, auth.ProviderDiscord, 1))
		require.Equal(t, http.StatusOK, status, body)
		s.waitLink(second, s.cfg.Rank.Provider, 1)

		linkStatus, err := s.service.LinkStatus(context.Background(), first.ID())
		require.NoError(t, err)
		assert.False(t, linkStatus.Discord)

		linkStatus, err = s.service.LinkStatus(context.Background(), second.ID())
		require.NoError(t, err)
		assert.Equal(t, testutil.MockDiscordID, linkStatus.DiscordID)
	})

	t.Run("linked player cannot switch discord accounts", func(t *testing.T) {
		mock := testutil.NewMockProviderServer()
		defer mock.Close()
		s := startStack(t, newStore(t), mock)

		p := worldtest.NewFakePlayer("steve", home)
		s.join(p)
		status, body := s.completeCallback(auth.ProviderDiscord, "valid_code", s.waitLink(p, auth.ProviderDiscord, 1))
		require.Equal(t, http.StatusOK, status, body)
		s.waitLink(p, s.cfg.Rank.Provider, 1)

		status, body = s.completeCallback(auth.ProviderDiscord, "other_code", s.stateFor(p, auth.ProviderDiscord, ""))
		assert.Equal(t, http.StatusConflict, status)
		assert.Contains(t, body, "already linked to another account")

		linkStatus, err := s.service.LinkStatus(context.Background(), p.ID())
		require.NoError(t, err)
		assert.Equal(t, testutil.MockDiscordID, linkStatus.DiscordID)
	})

	t.Run("skipping the optional rank link", func(t *testing.T) {
		mock := testutil.NewMockProviderServer()
		defer mock.Close()
		s := startStack(t, newStore(t), mock)

		p := worldtest.NewFakePlayer("steve", home)
		s.join(p)
		status, body := s.completeCallback(auth.ProviderDiscord, "valid_code", s.waitLink(p, auth.ProviderDiscord, 1))
		require.Equal(t, http.StatusOK, status, body)
		s.waitLink(p, s.cfg.Rank.Provider, 2)
		s.settle()

		for i := 0; i < 3; i++ {
			cancelled, err := s.host.Bus().Post(context.Background(), &world.CommandEvent{
				Player:  p,
				Command: "/" + s.cfg.Gate.SkipCommand,
			})
			require.NoError(t, err)
			assert.True(t, cancelled)
		}

		s.waitState(p, gate.StateReleased)
	})

	t.Run("returning player is admitted on the next join", func(t *testing.T) {
		mock := testutil.NewMockProviderServer()
		defer mock.Close()
		s := startStack(t, newStore(t), mock)

		p := worldtest.NewFakePlayer("steve", home)
		s.join(p)
		status, _ := s.completeCallback(auth.ProviderDiscord, "valid_code", s.waitLink(p, auth.ProviderDiscord, 1))
		require.Equal(t, http.StatusOK, status)
		rankState := s.waitLink(p, s.cfg.Rank.Provider, 1)
		status, _ = s.completeCallback(s.cfg.Rank.Provider, "valid_code", rankState)
		require.Equal(t, http.StatusOK, status)
		s.waitState(p, gate.StateReleased)

		_, err := s.host.Bus().Post(context.Background(), &world.QuitEvent{Player: p})
		require.NoError(t, err)
		s.server.Remove(p)

		again := worldtest.NewFakePlayer("steve", spawn)
		again.SetID(p.ID())
		s.join(again)
		s.waitState(again, gate.StateReleased)
		assert.Empty(t, again.Teleports())
	})
}

func TestLinking_SQLite(t *testing.T) {
	runLinkingScenarios(t, func(t *testing.T) database.DocumentStore {
		db, cleanup, err := testutil.SetupSQLiteDB(context.Background())
		require.NoError(t, err)
		t.Cleanup(cleanup)
		return db
	})
}

func TestLinking_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}

	db, cleanup, err := testutil.SetupTestDB(context.Background())
	require.NoError(t, err)
	defer cleanup()

	runLinkingScenarios(t, func(t *testing.T) database.DocumentStore {
		require.NoError(t, testutil.TruncateDocuments(context.Background(), db))
		return db
	})
}

func TestLinking_MemoryStore(t *testing.T) {
	runLinkingScenarios(t, func(*testing.T) database.DocumentStore {
		return database.NewMemoryStore()
	})
}

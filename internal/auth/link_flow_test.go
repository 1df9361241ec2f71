package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/linking"
	"github.com/parsascontentcorner/linkgate/internal/models"
)

type fakeProvider struct {
	name     string
	profiles map[string]*models.ExternalProfile
	calls    int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://" + p.name + ".example/authorize?state=" + state
}

func (p *fakeProvider) ExchangeForProfile(_ context.Context, code string) (*models.ExternalProfile, error) {
	p.calls++
	profile, ok := p.profiles[code]
	if !ok {
		return nil, errors.New("invalid_grant")
	}
	return profile, nil
}

type fakeLinker struct {
	requests []linking.LinkRequest
	result   models.LinkResult
	err      error
}

func (l *fakeLinker) CreateLink(_ context.Context, req linking.LinkRequest) (models.LinkResult, error) {
	l.requests = append(l.requests, req)
	if l.err != nil {
		return nil, l.err
	}
	if l.result != nil {
		return l.result, nil
	}
	return models.LinkSuccess{Ticket: &models.LinkTicket{PlayerID: req.PlayerID, DiscordID: req.DiscordID}}, nil
}

type flowFixture struct {
	flow    *LinkFlow
	codec   *StateCodec
	discord *fakeProvider
	rank    *fakeProvider
	linker  *fakeLinker
	now     time.Time
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	f := &flowFixture{
		codec: NewStateCodec([]byte("0123456789abcdef0123456789abcdef"), "v1"),
		discord: &fakeProvider{name: ProviderDiscord, profiles: map[string]*models.ExternalProfile{
			"valid_code": {Provider: ProviderDiscord, UserID: "42", Username: "steve"},
		}},
		rank: &fakeProvider{name: "osu", profiles: map[string]*models.ExternalProfile{
			"valid_code": {Provider: "osu", UserID: "7562902", Username: "mrekk", Rank: 1},
		}},
		linker: &fakeLinker{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.flow = NewLinkFlow(f.codec, NewProviders(f.discord, f.rank), f.linker, 10*time.Minute, logger)
	f.flow.now = func() time.Time { return f.now }
	return f
}

func (f *flowFixture) token(t *testing.T, discordID string, issuedAt time.Time) string {
	t.Helper()
	token, err := f.codec.Encode(models.LinkState{
		DiscordID: discordID,
		PlayerID:  uuid.MustParse("8667ba71-b85a-4004-af54-457a9734eed7"),
		Username:  "Steve",
		IssuedAt:  issuedAt,
	})
	require.NoError(t, err)
	return token
}

func TestLinkFlow_DiscordCallback(t *testing.T) {
	f := newFlowFixture(t)

	result, err := f.flow.HandleCallback(context.Background(), ProviderDiscord, "valid_code", f.token(t, "", f.now))

	require.NoError(t, err)
	require.Len(t, f.linker.requests, 1)
	req := f.linker.requests[0]
	assert.Equal(t, "42", req.DiscordID)
	assert.Equal(t, "Steve", req.Username)
	assert.Equal(t, ProviderDiscord, req.Source)
	assert.Nil(t, req.Profile)
	assert.Equal(t, "42", result.Profile.UserID)
	assert.IsType(t, models.LinkSuccess{}, result.Result)
}

func TestLinkFlow_DiscordCallbackMatchingState(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.HandleCallback(context.Background(), ProviderDiscord, "valid_code", f.token(t, "42", f.now))

	require.NoError(t, err)
	assert.Len(t, f.linker.requests, 1)
}

func TestLinkFlow_RankCallback(t *testing.T) {
	f := newFlowFixture(t)

	result, err := f.flow.HandleCallback(context.Background(), "osu", "valid_code", f.token(t, "42", f.now))

	require.NoError(t, err)
	require.Len(t, f.linker.requests, 1)
	req := f.linker.requests[0]
	assert.Equal(t, "42", req.DiscordID)
	require.NotNil(t, req.Profile)
	assert.Equal(t, "7562902", req.Profile.UserID)
	assert.Equal(t, "osu", req.Source)
	assert.Equal(t, "mrekk", result.Profile.Username)
}

func TestLinkFlow_RankCallbackWithoutDiscord(t *testing.T) {
	f := newFlowFixture(t)

	result, err := f.flow.HandleCallback(context.Background(), "osu", "valid_code", f.token(t, "", f.now))

	require.NoError(t, err)
	assert.Equal(t, models.LinkRejected{Reason: models.RejectMissingDiscordLink}, result.Result)
	assert.Empty(t, f.linker.requests)
}

func TestLinkFlow_Rejected(t *testing.T) {
	f := newFlowFixture(t)
	f.linker.result = models.LinkRejected{Reason: models.RejectAlreadyLinked}

	result, err := f.flow.HandleCallback(context.Background(), ProviderDiscord, "valid_code", f.token(t, "", f.now))

	require.NoError(t, err)
	assert.Equal(t, models.LinkRejected{Reason: models.RejectAlreadyLinked}, result.Result)
}

func TestLinkFlow_Errors(t *testing.T) {
	tests := []struct {
		name          string
		provider      string
		code          string
		token         func(f *flowFixture, t *testing.T) string
		linkerErr     error
		wantErr       error
		wantExchanged bool
	}{
		{
			name:     "unknown provider",
			provider: "steam",
			code:     "valid_code",
			token:    func(f *flowFixture, t *testing.T) string { return f.token(t, "", f.now) },
			wantErr:  ErrUnknownProvider,
		},
		{
			name:     "missing state",
			provider: ProviderDiscord,
			code:     "valid_code",
			token:    func(*flowFixture, *testing.T) string { return "" },
			wantErr:  ErrInvalidState,
		},
		{
			name:     "missing code",
			provider: ProviderDiscord,
			token:    func(f *flowFixture, t *testing.T) string { return f.token(t, "", f.now) },
			wantErr:  ErrMissingCode,
		},
		{
			name:     "tampered state",
			provider: ProviderDiscord,
			code:     "valid_code",
			token:    func(f *flowFixture, t *testing.T) string { return f.token(t, "", f.now) + "A" },
			wantErr:  ErrInvalidState,
		},
		{
			name:     "foreign secret",
			provider: ProviderDiscord,
			code:     "valid_code",
			token: func(f *flowFixture, t *testing.T) string {
				token, err := NewStateCodec([]byte("other"), "v1").Encode(models.LinkState{PlayerID: uuid.New(), IssuedAt: f.now})
				require.NoError(t, err)
				return token
			},
			wantErr: ErrInvalidState,
		},
		{
			name:     "expired state",
			provider: ProviderDiscord,
			code:     "valid_code",
			token:    func(f *flowFixture, t *testing.T) string { return f.token(t, "", f.now.Add(-11*time.Minute)) },
			wantErr:  ErrStateExpired,
		},
		{
			name:          "exchange failure",
			provider:      ProviderDiscord,
			code:          "error_code",
			token:         func(f *flowFixture, t *testing.T) string { return f.token(t, "", f.now) },
			wantErr:       ErrExchangeFailed,
			wantExchanged: true,
		},
		{
			name:          "identity mismatch",
			provider:      ProviderDiscord,
			code:          "valid_code",
			token:         func(f *flowFixture, t *testing.T) string { return f.token(t, "99", f.now) },
			wantErr:       ErrIdentityMismatch,
			wantExchanged: true,
		},
		{
			name:          "persistence failure",
			provider:      ProviderDiscord,
			code:          "valid_code",
			token:         func(f *flowFixture, t *testing.T) string { return f.token(t, "", f.now) },
			linkerErr:     errors.New("connection refused"),
			wantErr:       ErrPersistence,
			wantExchanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlowFixture(t)
			f.linker.err = tt.linkerErr

			result, err := f.flow.HandleCallback(context.Background(), tt.provider, tt.code, tt.token(f, t))

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantExchanged, f.discord.calls > 0)
			if !errors.Is(tt.wantErr, ErrPersistence) {
				assert.Empty(t, f.linker.requests)
			}
		})
	}
}

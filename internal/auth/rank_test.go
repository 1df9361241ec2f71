package auth

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/testutil"
)

func TestRankClient_AuthURL(t *testing.T) {
	cfg := testutil.GenerateTestConfig("")
	logger, _ := zap.NewDevelopment()
	client := NewRankClient(&cfg.Rank, logger)

	assert.Equal(t, "osu", client.Name())

	parsed, err := url.Parse(client.AuthURL("abc.def"))
	require.NoError(t, err)
	assert.Equal(t, "osu.ppy.sh", parsed.Host)
	assert.Equal(t, "abc.def", parsed.Query().Get("state"))
	assert.Equal(t, cfg.Rank.ClientID, parsed.Query().Get("client_id"))
	assert.Equal(t, cfg.Rank.RedirectURI, parsed.Query().Get("redirect_uri"))
}

func TestRankClient_ExchangeForProfile(t *testing.T) {
	mockServer := testutil.NewMockProviderServer()
	defer mockServer.Close()

	cfg := testutil.GenerateTestConfig(mockServer.URL())
	logger, _ := zap.NewDevelopment()
	client := NewRankClient(&cfg.Rank, logger)

	profile, err := client.ExchangeForProfile(context.Background(), "valid_code")

	require.NoError(t, err)
	assert.Equal(t, "osu", profile.Provider)
	assert.Equal(t, testutil.MockRankUserID, profile.UserID)
	assert.Equal(t, "mrekk", profile.Username)
	assert.Equal(t, 1, profile.Rank)
	assert.Equal(t, "AU", profile.Country)
	assert.Equal(t, 1, mockServer.TokenCalls())
	assert.Equal(t, 1, mockServer.UserInfoCalls())
}

func TestRankClient_ExchangeForProfile_Errors(t *testing.T) {
	mockServer := testutil.NewMockProviderServer()
	defer mockServer.Close()

	cfg := testutil.GenerateTestConfig("")
	logger, _ := zap.NewDevelopment()
	client := NewRankClient(&cfg.Rank, logger)
	client.SetBaseURL(mockServer.URL())

	for _, code := range []string{"error_code", "server_error", "profile_error", "unknown"} {
		t.Run(code, func(t *testing.T) {
			profile, err := client.ExchangeForProfile(context.Background(), code)

			assert.Error(t, err)
			assert.Nil(t, profile)
		})
	}
}

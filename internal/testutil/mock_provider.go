package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
)

// Canned identities returned by MockProviderServer
const (
	MockDiscordID      = "123456789012345678"
	MockOtherDiscordID = "987654321098765432"
	MockRankUserID     = "7562902"
)

// MockProviderServer is a mock OAuth provider serving both the Discord and the rank
// provider endpoints.
//
// Codes: "valid_code" and "other_code" succeed, "error_code" is rejected with
// invalid_grant, "server_error" fails with 500, "profile_error" yields a token whose
// profile lookup fails.
type MockProviderServer struct {
	Server        *httptest.Server
	tokenCalls    atomic.Int32
	userInfoCalls atomic.Int32
}

// TokenResponse represents an OAuth token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// ErrorResponse represents an OAuth error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// NewMockProviderServer creates a new mock provider server.
func NewMockProviderServer() *MockProviderServer {
	mps := &MockProviderServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", mps.handleToken)
	mux.HandleFunc("/oauth/token", mps.handleToken)

	mux.HandleFunc("/users/@me", mps.withAccessToken(func(w http.ResponseWriter, token string) {
		switch token {
		case "access_valid_code":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":            MockDiscordID,
				"username":      "testuser",
				"global_name":   "Test User",
				"discriminator": "0",
			})
		case "access_other_code":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":            MockOtherDiscordID,
				"username":      "otheruser",
				"discriminator": "0",
			})
		default:
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorDescription: "Invalid token"})
		}
	}))

	mux.HandleFunc("/me", mps.withAccessToken(func(w http.ResponseWriter, token string) {
		switch token {
		case "access_valid_code", "access_other_code":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":           7562902,
				"username":     "mrekk",
				"country_code": "AU",
				"statistics": map[string]any{
					"global_rank": 1,
				},
			})
		default:
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorDescription: "Invalid token"})
		}
	}))

	mps.Server = httptest.NewServer(mux)
	return mps
}

func (mps *MockProviderServer) handleToken(w http.ResponseWriter, r *http.Request) {
	mps.tokenCalls.Add(1)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	switch code {
	case "valid_code", "other_code", "profile_error":
		writeJSON(w, http.StatusOK, TokenResponse{
			AccessToken:  "access_" + code,
			TokenType:    "Bearer",
			ExpiresIn:    604800,
			RefreshToken: "refresh_" + code,
			Scope:        "identify",
		})
	case "server_error":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	case "error_code":
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_grant", ErrorDescription: "Invalid authorization code"})
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", ErrorDescription: "Unknown code"})
	}
}

func (mps *MockProviderServer) withAccessToken(next func(http.ResponseWriter, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mps.userInfoCalls.Add(1)

		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorDescription: "Missing or invalid authorization header"})
			return
		}

		next(w, strings.TrimPrefix(authHeader, "Bearer "))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// URL returns the server base URL.
func (mps *MockProviderServer) URL() string {
	return mps.Server.URL
}

// TokenCalls returns the number of token exchange requests.
func (mps *MockProviderServer) TokenCalls() int {
	return int(mps.tokenCalls.Load())
}

// UserInfoCalls returns the number of profile requests.
func (mps *MockProviderServer) UserInfoCalls() int {
	return int(mps.userInfoCalls.Load())
}

// Close closes the mock server.
func (mps *MockProviderServer) Close() {
	if mps.Server != nil {
		mps.Server.Close()
	}
}

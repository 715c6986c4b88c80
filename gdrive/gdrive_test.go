package gdrive

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const serviceKey = `{"type": "service_account", "client_email": "bot@example.iam.gserviceaccount.com"}`
const clientSecret = `{"installed": {"client_id": "id", "client_secret": "secret", "redirect_uris": ["urn:ietf:wg:oauth:2.0:oob"]}}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(serviceKey+"\n"), 0600))

	testCases := []struct {
		creds    Credentials
		expected string
		err      bool
	}{
		{Credentials{Path: path}, serviceKey, false},
		{Credentials{JSON: serviceKey}, serviceKey, false},
		{Credentials{JSON: base64.StdEncoding.EncodeToString([]byte(serviceKey))}, serviceKey, false},
		{Credentials{Path: path, JSON: "ignored"}, serviceKey, false},
		{Credentials{Path: filepath.Join(dir, "missing.json")}, "", true},
		{Credentials{JSON: "not base64 !"}, "", true},
		{Credentials{}, "", true},
	}

	for _, tc := range testCases {
		answer, err := tc.creds.load()
		if tc.err {
			assert.Error(t, err, "For %+v expected an error", tc.creds)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expected, string(answer))
	}
}

func TestIsServiceAccount(t *testing.T) {
	assert.True(t, isServiceAccount([]byte(serviceKey)))
	assert.False(t, isServiceAccount([]byte(clientSecret)))
	assert.False(t, isServiceAccount([]byte("nope")))
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}

	log, _ := test.NewNullLogger()
	require.NoError(t, Auth{Log: log}.saveToken(path, tok))

	read, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a", read.AccessToken)
	assert.Equal(t, "r", read.RefreshToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func tokenServer(t *testing.T) (*httptest.Server, *string) {
	var code string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		code = r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "fresh", "token_type": "Bearer", "refresh_token": "r", "expires_in": 3600}`))
	}))
	t.Cleanup(server.Close)
	return server, &code
}

func TestOAuthClientAsksOnce(t *testing.T) {
	server, code := tokenServer(t)
	config := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"},
	}

	var opened []string
	log, _ := test.NewNullLogger()
	a := Auth{
		Log:  log,
		In:   strings.NewReader("the-code\n"),
		Open: func(url string) error { opened = append(opened, url); return nil },
	}

	tokFile := filepath.Join(t.TempDir(), "token.json")
	client, err := a.oauthClient(context.Background(), config, tokFile)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "the-code", *code)
	require.Len(t, opened, 1)
	assert.True(t, strings.HasPrefix(opened[0], server.URL+"/auth"))

	saved, err := tokenFromFile(tokFile)
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)

	// The cached token is used; nothing is read from In this time.
	a.In = strings.NewReader("")
	_, err = a.oauthClient(context.Background(), config, tokFile)
	require.NoError(t, err)
	assert.Len(t, opened, 1)
}

func TestOAuthClientExpiredWithoutRefresh(t *testing.T) {
	tokFile := filepath.Join(t.TempDir(), "token.json")
	a := Auth{In: strings.NewReader("")}
	require.NoError(t, a.saveToken(tokFile, &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}))

	// Asks again, and there is no code to read.
	_, err := a.oauthClient(context.Background(), &oauth2.Config{}, tokFile)
	assert.Error(t, err)
}

func TestFindSpreadsheet(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(query, "Missing") {
			_, _ = w.Write([]byte(`{"files": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"files": [{"id": "sheet-1", "name": "Option Chain"}]}`))
	}))
	defer server.Close()

	ctx := context.Background()
	srv, err := drive.NewService(ctx, option.WithHTTPClient(server.Client()), option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	id, err := FindSpreadsheet(ctx, srv, "Trader's Option Chain")
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)
	assert.Contains(t, query, `name = 'Trader\'s Option Chain'`)
	assert.Contains(t, query, "trashed = false")

	_, err = FindSpreadsheet(ctx, srv, "Missing")
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	testCases := []struct {
		title    string
		expected string
	}{
		{"Option Chain", "Option Chain"},
		{"Trader's", `Trader\'s`},
		{`NIFTY\BANK`, `NIFTY\\BANK`},
		{`a\'b`, `a\\\'b`},
	}

	for _, tc := range testCases {
		answer := quote(tc.title)
		if answer != tc.expected {
			t.Errorf("For %v expected %v, got %v", tc.title, tc.expected, answer)
		}
	}
}

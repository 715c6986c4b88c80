package gdrive

//
// Service account: share the spreadsheet with the account's e-mail address and point
// GOOGLE_CREDENTIALS_PATH at its key file (or put the JSON, or its base64, in GOOGLE_CREDENTIALS).
//
// Installed app: create OAuth client credentials in the GCP console and save them as the
// credentials file. The first run opens a browser for consent and caches the token file.
//
// Either file may be encrypted with github.com/erikbryant/aes; set CREDENTIALS_PASSPHRASE.
//

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/erikbryant/aes"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes needed to find a spreadsheet by title and rewrite its tabs.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope}

// Credentials says where to find the Google key.
type Credentials struct {
	// Path is a service account key or OAuth client secret file.
	Path string
	// JSON is the same content inline, raw or base64. Used when Path is empty.
	JSON string
	// Passphrase decrypts the content when set.
	Passphrase string
	// TokenFile caches the OAuth token. Ignored for service accounts.
	TokenFile string
}

// Auth builds authenticated HTTP clients.
type Auth struct {
	Log logrus.FieldLogger
	// In is where the OAuth authorization code is read from.
	In io.Reader
	// Open shows the consent page to the user.
	Open func(url string) error
}

// NewAuth returns an Auth that reads codes from stdin and opens the system browser.
func NewAuth(log logrus.FieldLogger) Auth {
	return Auth{Log: log, In: os.Stdin, Open: browser.OpenURL}
}

// load returns the raw JSON key.
func (c Credentials) load() ([]byte, error) {
	var content string

	switch {
	case c.Path != "":
		b, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, fmt.Errorf("unable to read credentials file: %w", err)
		}
		content = string(b)
	case c.JSON != "":
		content = c.JSON
	default:
		return nil, fmt.Errorf("no Google credentials configured")
	}

	content = strings.TrimSpace(content)

	if c.Passphrase != "" {
		plain, err := aes.Decrypt(content, c.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("incorrect passphrase for Google credentials: %w", err)
		}
		content = strings.TrimSpace(plain)
	}

	if !strings.HasPrefix(content, "{") {
		b, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("credentials are neither JSON nor base64: %w", err)
		}
		content = string(b)
	}

	return []byte(content), nil
}

// isServiceAccount reports whether key is a service account key rather than an OAuth client secret.
func isServiceAccount(key []byte) bool {
	var k struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(key, &k); err != nil {
		return false
	}
	return k.Type == "service_account"
}

// Retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	tok := &oauth2.Token{}

	err = json.NewDecoder(f).Decode(tok)

	return tok, err
}

// Saves a token to a file path.
func (a Auth) saveToken(path string, token *oauth2.Token) error {
	if a.Log != nil {
		a.Log.Infof("Saving credential file to: %s", path)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}

	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// Request a token from the web, then returns the retrieved token.
func (a Auth) getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Printf("Opening authorization link in your browser: \n%v\n\n", authURL)
	if a.Open != nil {
		if err := a.Open(authURL); err != nil && a.Log != nil {
			a.Log.WithError(err).Warn("Unable to open browser")
		}
	}

	fmt.Println("Enter the authorization code:")

	var authCode string
	if _, err := fmt.Fscan(bufio.NewReader(a.In), &authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}

	return tok, nil
}

// Retrieve a token, saves the token, then returns the generated client.
func (a Auth) oauthClient(ctx context.Context, config *oauth2.Config, tokFile string) (*http.Client, error) {
	if tokFile == "" {
		tokFile = "token.json"
	}

	// A cached token with a refresh token is renewed by the client; only ask again without one.
	tok, err := tokenFromFile(tokFile)
	if err != nil || (tok.RefreshToken == "" && tok.Expiry.Before(time.Now())) {
		tok, err = a.getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		err = a.saveToken(tokFile, tok)
		if err != nil {
			return nil, err
		}
	}

	return config.Client(ctx, tok), nil
}

// Client returns an HTTP client authorized for Scopes.
func (a Auth) Client(ctx context.Context, creds Credentials) (*http.Client, error) {
	key, err := creds.load()
	if err != nil {
		return nil, err
	}

	if isServiceAccount(key) {
		config, err := google.JWTConfigFromJSON(key, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		return config.Client(ctx), nil
	}

	// If you modify these scopes, delete the old token file.
	config, err := google.ConfigFromJSON(key, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	return a.oauthClient(ctx, config, creds.TokenFile)
}

// Services returns the Sheets and Drive services sharing one authorized client.
func Services(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*sheets.Service, *drive.Service, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create Sheets client: %w", err)
	}

	driveSrv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create Drive client: %w", err)
	}

	return srv, driveSrv, nil
}

// quote escapes backslashes and single quotes for a Drive query string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s)
}

// FindSpreadsheet returns the ID of the most recently modified spreadsheet called title.
func FindSpreadsheet(ctx context.Context, srv *drive.Service, title string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		quote(title))

	list, err := srv.Files.List().Q(q).OrderBy("modifiedTime desc").Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to search Drive for %q: %w", title, err)
	}

	if len(list.Files) == 0 {
		return "", fmt.Errorf("no spreadsheet named %q is shared with these credentials", title)
	}

	return list.Files[0].Id, nil
}

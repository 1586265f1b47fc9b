package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrNoToken means user OAuth is configured but `calwatch auth` was never run.
var ErrNoToken = errors.New("no stored OAuth token, run `calwatch auth`")

// NewCalendarFeed picks the credential source from config: an API key for
// public calendars, a service account file, or a stored user OAuth token.
func NewCalendarFeed(ctx context.Context, config *Config, db *sql.DB) (*GoogleCalendarFeed, error) {
	opts, err := feedClientOptions(ctx, config, db)
	if err != nil {
		return nil, err
	}
	return NewGoogleCalendarFeed(ctx, opts...)
}

func feedClientOptions(ctx context.Context, config *Config, db *sql.DB) ([]option.ClientOption, error) {
	switch {
	case config.APIKey != "":
		return []option.ClientOption{option.WithAPIKey(config.APIKey)}, nil

	case config.CredentialsFile != "":
		data, err := os.ReadFile(config.resolve(config.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, calendar.CalendarReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials file: %w", err)
		}
		return []option.ClientOption{option.WithTokenSource(creds.TokenSource)}, nil

	case config.ClientID != "":
		client, err := getClient(ctx, oauthConfig(config), db, config.CalendarID)
		if err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithHTTPClient(client)}, nil
	}
	return nil, errors.New("no credentials configured: set api_key, credentials_file or client_id")
}

func oauthConfig(config *Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}
}

// getTokenFromWeb runs the interactive consent flow on in/out.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func saveToken(db *sql.DB, accountName string, token *oauth2.Token) error {
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return err
	}

	_, err = db.Exec("INSERT OR REPLACE INTO tokens (account_name, token) VALUES (?, ?)", accountName, tokenJSON)
	return err
}

func loadToken(db *sql.DB, accountName string) (*oauth2.Token, error) {
	var tokenJSON []byte
	err := db.QueryRow("SELECT token FROM tokens WHERE account_name = ?", accountName).Scan(&tokenJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving token from database: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("error unmarshaling token: %w", err)
	}
	return &token, nil
}

// getClient returns an HTTP client for the stored token, refreshing it and
// writing the refreshed token back when needed.
func getClient(ctx context.Context, config *oauth2.Config, db *sql.DB, accountName string) (*http.Client, error) {
	token, err := loadToken(db, accountName)
	if err != nil {
		return nil, err
	}

	newToken, err := config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("error refreshing token for %s: %w", accountName, err)
	}

	if newToken.AccessToken != token.AccessToken {
		logger.Debug().Str("account", accountName).Msg("oauth token refreshed")
		if err := saveToken(db, accountName, newToken); err != nil {
			return nil, fmt.Errorf("error saving refreshed token: %w", err)
		}
	}

	return config.Client(ctx, newToken), nil
}

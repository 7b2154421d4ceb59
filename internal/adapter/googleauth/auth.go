// Package googleauth builds the OAuth2 HTTP client shared by the Gmail and
// Calendar gateways.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
)

// Scopes are the permissions the gateways need.
var Scopes = []string{
	gmail.GmailModifyScope,
	calendar.CalendarEventsScope,
}

// storedToken accepts both the oauth2 package layout and the layout written
// by the Node google-auth-library (expiry_date in Unix milliseconds).
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	ExpiryDate   int64     `json:"expiry_date"`
}

// LoadToken reads a saved OAuth2 token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	if st.AccessToken == "" && st.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds neither access nor refresh token", path)
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}
	if tok.Expiry.IsZero() && st.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(st.ExpiryDate)
	}
	return tok, nil
}

// NewHTTPClient builds an authorised client from an installed-app
// credentials file and a saved token. The token is refreshed automatically.
func NewHTTPClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, tok)), nil
}

package googleauth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTokenNodeLayout(t *testing.T) {
	path := writeFile(t, "tokens.json", `{
		"access_token": "ya29.a",
		"refresh_token": "1//r",
		"scope": "https://www.googleapis.com/auth/gmail.modify",
		"token_type": "Bearer",
		"expiry_date": 1760000000000
	}`)

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "ya29.a", tok.AccessToken)
	assert.Equal(t, "1//r", tok.RefreshToken)
	assert.Equal(t, time.UnixMilli(1760000000000).Unix(), tok.Expiry.Unix())
}

func TestLoadTokenRejectsEmpty(t *testing.T) {
	path := writeFile(t, "tokens.json", `{"token_type":"Bearer"}`)
	_, err := LoadToken(path)
	assert.Error(t, err)
}

func TestNewHTTPClient(t *testing.T) {
	creds := writeFile(t, "credentials.json", `{"installed":{
		"client_id":"id.apps.googleusercontent.com",
		"client_secret":"secret",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["http://localhost"]
	}}`)
	token := writeFile(t, "tokens.json", `{"access_token":"ya29.a","token_type":"Bearer"}`)

	client, err := NewHTTPClient(context.Background(), creds, token)
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewHTTPClient(context.Background(), filepath.Join(t.TempDir(), "missing.json"), token)
	assert.Error(t, err)
}

package msgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// expirySkew treats a token as stale slightly early so a request never
// leaves with a token that dies in flight.
const expirySkew = 5 * time.Minute

// TokenData is the cached Graph credential pair.
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
}

// IsExpired reports whether the access token needs refreshing.
func (t *TokenData) IsExpired() bool {
	return time.Now().Add(expirySkew).After(t.ExpiresAt)
}

func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "daytally", "msgraph_tokens.json"), nil
}

// LoadTokens returns the cached tokens, or nil when none were saved yet.
func LoadTokens() (*TokenData, error) {
	path, err := tokenPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	tokens := new(TokenData)
	if err := json.Unmarshal(data, tokens); err != nil {
		return nil, fmt.Errorf("parsing token cache %s: %w", path, err)
	}
	return tokens, nil
}

// SaveTokens caches tokens on disk, readable only by the owner. The write
// goes through a temp file and rename so a crash cannot leave a half-written
// cache behind.
func SaveTokens(tokens *TokenData) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing token cache: %w", err)
	}
	return nil
}

package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

// ErrNoToken means no stored OAuth token exists yet; the operator has to
// run the interactive authorization once.
var ErrNoToken = errors.New("no stored OAuth token, run with -login first")

// Options configures a Client.
type Options struct {
	CredentialsFile string
	TokenFile       string
	ChannelID       string
	PlaylistID      string

	// MutationsPerSecond throttles create/bind/delete/playlist calls to
	// keep a large weeks-ahead run inside API quota. Zero means 1/s.
	MutationsPerSecond float64
}

// Client talks to the YouTube Data API and implements both collaborator
// roles the engine needs: the broadcast directory and the stream registry.
type Client struct {
	svc        *youtube.Service
	channelID  string
	playlistID string
	limiter    *rate.Limiter

	// streamByTitle is the channel's live streams keyed by title, loaded
	// lazily on the first registry lookup. serviceByStream maps a stream
	// id back to the service letter it was resolved for, so listed
	// broadcasts can be keyed.
	streamByTitle   map[string]model.StreamRef
	serviceByStream map[string]string
}

// NewClient builds an authenticated client from a stored token. The token
// is refreshed when expired and the refreshed value is persisted back to
// opts.TokenFile.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.ChannelID == "" {
		return nil, errors.New("channel id is required")
	}

	conf, err := oauthConfig(opts.CredentialsFile)
	if err != nil {
		return nil, err
	}

	tok, err := readToken(opts.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("read token: %w", err)
	}

	ts := conf.TokenSource(ctx, tok)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := writeToken(opts.TokenFile, fresh); err != nil {
			appLog.Error("failed to persist refreshed token", err, "path", opts.TokenFile)
		} else {
			appLog.Info("refreshed OAuth token", "path", opts.TokenFile)
		}
	}

	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}

	rps := opts.MutationsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		svc:        svc,
		channelID:  opts.ChannelID,
		playlistID: opts.PlaylistID,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Authorize runs the one-time interactive OAuth flow: prints the consent
// URL, reads the code from stdin and persists the granted token.
func Authorize(ctx context.Context, credentialsFile, tokenFile string) error {
	conf, err := oauthConfig(credentialsFile)
	if err != nil {
		return err
	}

	url := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following URL in a browser, authorize, then paste the code here:\n\n%s\n\ncode: ", url)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	if err := writeToken(tokenFile, tok); err != nil {
		return err
	}
	appLog.Info("stored OAuth token", "path", tokenFile)
	return nil
}

func oauthConfig(credentialsFile string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read OAuth credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, youtube.YoutubeForceSslScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth credentials: %w", err)
	}
	return conf, nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

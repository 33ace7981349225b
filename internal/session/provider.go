package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Authenticator is the identity provider as the Manager uses it.
type Authenticator interface {
	AuthCodeURL(state, verifier string, silent bool) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Verify(ctx context.Context, accessToken string) (*Claims, error)
	EndSessionURL(idToken, redirect string) string
}

// Discovery is the subset of the OpenID provider metadata in use.
type Discovery struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type ProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Attempts bounds discovery retries; zero means a single attempt.
	Attempts int

	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

// Provider is an OIDC relying party for one client.
type Provider struct {
	meta   Discovery
	oauth  *oauth2.Config
	hc     *http.Client
	logger *zap.SugaredLogger

	mu   sync.RWMutex
	keys jose.JSONWebKeySet
}

var _ Authenticator = (*Provider)(nil)

// NewProvider discovers the provider's endpoints and signing keys, retrying
// with jittered backoff while the provider is unreachable.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	p := &Provider{
		hc:     cfg.HTTPClient,
		logger: cfg.Logger,
	}
	if p.hc == nil {
		p.hc = &http.Client{Timeout: 10 * time.Second}
	}
	if p.logger == nil {
		p.logger = zap.NewNop().Sugar()
	}
	p.logger = p.logger.Named("oidc")

	bckoff := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: true}
	for attempt := 1; ; attempt++ {
		err := p.discover(ctx, cfg.IssuerURL)
		if err == nil {
			break
		}
		if attempt >= cfg.Attempts {
			return nil, errors.Wrapf(err, "discover %s", cfg.IssuerURL)
		}
		wait := bckoff.Duration()
		p.logger.Warnw("Identity provider not reachable, will retry",
			"issuer", cfg.IssuerURL,
			"attempt", attempt,
			"wait", wait,
			"error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	p.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.meta.AuthorizationEndpoint,
			TokenURL: p.meta.TokenEndpoint,
		},
	}
	p.logger.Infow("Identity provider discovered", "issuer", p.meta.Issuer)
	return p, nil
}

func (p *Provider) discover(ctx context.Context, issuer string) error {
	var meta Discovery
	if err := p.getJSON(ctx, issuer+"/.well-known/openid-configuration", &meta); err != nil {
		return err
	}
	if meta.Issuer == "" || meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" || meta.JWKSURI == "" {
		return errors.New("incomplete provider metadata")
	}
	p.meta = meta
	return p.fetchKeys(ctx)
}

func (p *Provider) fetchKeys(ctx context.Context) error {
	var keys jose.JSONWebKeySet
	if err := p.getJSON(ctx, p.meta.JWKSURI, &keys); err != nil {
		return errors.Wrap(err, "fetch jwks")
	}
	p.mu.Lock()
	p.keys = keys
	p.mu.Unlock()
	return nil
}

func (p *Provider) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint: errcheck
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: %s", u, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Provider) Metadata() Discovery {
	return p.meta
}

// AuthCodeURL builds the authorization request with a PKCE S256 challenge.
// Silent requests ask the provider not to show any UI.
func (p *Provider) AuthCodeURL(state, verifier string, silent bool) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if silent {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "none"))
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.hc)
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, "exchange code")
	}
	return tok, nil
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.hc)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, errors.Wrap(err, "refresh token")
	}
	return tok, nil
}

// Verify checks the access token signature against the realm keys and
// returns its claims. An unknown key id triggers one key set reload.
func (p *Provider) Verify(ctx context.Context, accessToken string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(accessToken, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if key, ok := p.key(kid); ok {
			return key, nil
		}
		p.logger.Infow("Signing key not found, reloading key set", "kid", kid)
		if err := p.fetchKeys(ctx); err != nil {
			return nil, err
		}
		if key, ok := p.key(kid); ok {
			return key, nil
		}
		return nil, errors.Errorf("no signing key %q", kid)
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256"}),
		jwt.WithIssuer(p.meta.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "verify access token")
	}
	return &claims, nil
}

func (p *Provider) key(kid string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if kid == "" {
		if len(p.keys.Keys) == 1 {
			return p.keys.Keys[0].Key, true
		}
		return nil, false
	}
	keys := p.keys.Key(kid)
	if len(keys) == 0 {
		return nil, false
	}
	return keys[0].Key, true
}

// EndSessionURL is the provider logout URL, or redirect when the provider
// has no end-session endpoint.
func (p *Provider) EndSessionURL(idToken, redirect string) string {
	if p.meta.EndSessionEndpoint == "" {
		return redirect
	}
	q := url.Values{}
	q.Set("client_id", p.oauth.ClientID)
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if redirect != "" {
		q.Set("post_logout_redirect_uri", redirect)
	}
	return p.meta.EndSessionEndpoint + "?" + q.Encode()
}

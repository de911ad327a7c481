package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	authorizer "github.com/localnerve/authorizer-go"

	"github.com/localnerve/formsdb/internal/config"
	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/utils"
)

// SessionCookie is the authorizer session cookie name.
const SessionCookie = "cookie_session"

// ErrNoCredentials means the request carried no session or token at all.
var ErrNoCredentials = errors.New("no credentials presented")

// Identity is the authenticated user as reported by the auth provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Authenticator resolves the caller of a request. It returns ErrNoCredentials
// when nothing was presented, and another error when credentials are invalid.
type Authenticator interface {
	Authenticate(c *fiber.Ctx) (*Identity, error)
}

// NewAuthenticator picks the implementation named by AUTH_MODE.
func NewAuthenticator(cfg *config.Config) (Authenticator, error) {
	switch cfg.AuthMode {
	case "authorizer":
		return NewAuthorizerAuthenticator(cfg), nil
	case "jwt":
		return NewJWTAuthenticator(cfg.JWTSecret), nil
	}
	return nil, fmt.Errorf("unsupported auth mode: %s", cfg.AuthMode)
}

// AuthorizerAuthenticator validates the authorizer session cookie.
type AuthorizerAuthenticator struct {
	cfg  *config.Config
	ping func(ctx context.Context, authzURL string) error

	mu     sync.Mutex
	client *authorizer.AuthorizerClient
}

func NewAuthorizerAuthenticator(cfg *config.Config) *AuthorizerAuthenticator {
	return &AuthorizerAuthenticator{cfg: cfg, ping: utils.PingAuthorizer}
}

// init creates the client on the first request, when the redirect origin is known.
// A failed attempt leaves client nil and is retried by the next request.
func (a *AuthorizerAuthenticator) init(requestProtocol, requestHost string) (*authorizer.AuthorizerClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}

	if err := a.ping(context.Background(), a.cfg.AuthzURL); err != nil {
		return nil, fmt.Errorf("authorizer ping failed: %w", err)
	}

	redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
	logging.Logger.Infof("Initializing Authorizer: authorizerURL=%s, clientID=%s, redirectURL=%s",
		a.cfg.AuthzURL, a.cfg.AuthzClientID, redirectURL)

	client, err := authorizer.NewAuthorizerClient(a.cfg.AuthzClientID, a.cfg.AuthzURL, redirectURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer client: %w", err)
	}
	a.client = client
	return client, nil
}

func (a *AuthorizerAuthenticator) Authenticate(c *fiber.Ctx) (*Identity, error) {
	session := c.Cookies(SessionCookie)
	if session == "" {
		return nil, ErrNoCredentials
	}

	client, err := a.init(c.Protocol(), c.Hostname())
	if err != nil {
		return nil, err
	}

	res, err := client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: session,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid || res.User == nil {
		return nil, errors.New("session is not valid")
	}

	// go through JSON so the provider's optional fields need no special casing
	raw, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("session user: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("session user: %w", err)
	}
	if identity.ID == "" {
		return nil, errors.New("session user has no id")
	}
	return &identity, nil
}

// Claims are the bearer token claims. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 bearer tokens.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

func (a *JWTAuthenticator) Authenticate(c *fiber.Ctx) (*Identity, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, ErrNoCredentials
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return nil, errors.New("authorization header is not a bearer token")
	}

	claims, err := a.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// Parse validates a token and returns its claims.
func (a *JWTAuthenticator) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Issue signs a token for identity, valid for ttl.
func (a *JWTAuthenticator) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

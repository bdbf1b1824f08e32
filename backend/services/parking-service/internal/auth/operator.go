package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidCredentials represents login failure.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Operator is the single attendant account allowed to drive the gate API.
type Operator struct {
	Username     string
	PasswordHash string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Operator  string    `json:"operator"`
}

// Authenticator checks operator credentials and issues tokens.
type Authenticator struct {
	operator  Operator
	hasher    Hasher
	tokenizer *TokenService
	logger    *zap.Logger
}

func NewAuthenticator(operator Operator, hasher Hasher, tokenizer *TokenService, logger *zap.Logger) *Authenticator {
	operator.Username = strings.TrimSpace(operator.Username)
	return &Authenticator{
		operator:  operator,
		hasher:    hasher,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// Login authenticates the operator and produces a JWT.
func (a *Authenticator) Login(username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || a.operator.Username == "" || a.operator.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(a.operator.Username)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if err := a.hasher.Compare(a.operator.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := a.tokenizer.GenerateToken(username)
	if err != nil {
		return nil, err
	}

	a.logger.Info("operator logged in", zap.String("operator", username))
	return &LoginResult{Token: token, ExpiresAt: expires, Operator: username}, nil
}

// Validate checks a bearer token.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	return a.tokenizer.ValidateToken(token)
}

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/store"
	"backend-prolink/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Access tokens double as the session cookie, so they live as long as it.
	accessTokenTTL  = 7 * 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrEmailTaken         = apperr.New(apperr.Conflict, "email_taken", "email is already registered")
	ErrUserNameTaken      = apperr.New(apperr.Conflict, "username_taken", "user name is already taken")
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "invalid_credentials", "invalid email or password")
	ErrTokenInvalid       = apperr.New(apperr.Unauthorized, "token_invalid", "token invalid")
	ErrRefreshInvalid     = apperr.New(apperr.Unauthorized, "refresh_invalid", "refresh token invalid")
)

var (
	hashPasswordFn = bcrypt.GenerateFromPassword
	signTokenFn    = (*Service).signToken
)

type Service struct {
	secret []byte
	store  store.Store
}

type Claims struct {
	UserID string `json:"user_id"`
	// Type is "access" or "refresh". Only access tokens authenticate requests.
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type SignupRequest struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	UserName  string `json:"userName" validate:"required,max=30,username"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func NewService(secret string, s store.Store) *Service {
	return &Service{
		secret: []byte(secret),
		store:  s,
	}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (domain.User, TokenResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.UserName = strings.ToLower(strings.TrimSpace(req.UserName))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return domain.User{}, TokenResponse{}, err
	}

	if _, err := s.store.UserByEmail(ctx, req.Email); err == nil {
		return domain.User{}, TokenResponse{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, TokenResponse{}, store.AppError(err, "user")
	}
	if _, err := s.store.UserByUserName(ctx, req.UserName); err == nil {
		return domain.User{}, TokenResponse{}, ErrUserNameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, TokenResponse{}, store.AppError(err, "user")
	}

	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, TokenResponse{}, apperr.Wrap(err, "password hashing failed")
	}
	user := domain.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, TokenResponse{}, ErrUserNameTaken
		}
		return domain.User{}, TokenResponse{}, store.AppError(err, "user")
	}
	user.Connections = []string{}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return domain.User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (domain.User, TokenResponse, error) {
	if err := validation.Struct(req); err != nil {
		return domain.User{}, TokenResponse{}, err
	}
	user, err := s.store.UserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, TokenResponse{}, store.AppError(err, "user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return domain.User{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return domain.User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// Logout revokes refreshToken if one is given.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return store.AppError(s.store.RevokeRefreshToken(ctx, refreshToken), "refresh token")
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, tokenTypeAccess, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, apperr.Wrap(err, "token signing failed")
	}

	refresh, err := signTokenFn(s, userID, tokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, apperr.Wrap(err, "token signing failed")
	}

	if err := s.store.SaveRefreshToken(ctx, userID, refresh, time.Now().Add(refreshTokenTTL)); err != nil {
		return TokenResponse{}, store.AppError(err, "refresh token")
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	if claims.Type != tokenTypeRefresh {
		return "", ErrRefreshInvalid
	}

	userID, expiresAt, err := s.store.LookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return "", ErrRefreshInvalid
	}
	return claims.UserID, nil
}

// Refresh exchanges a valid refresh token for a new pair and revokes the old
// refresh token.
func (s *Service) Refresh(ctx context.Context, token string) (TokenResponse, error) {
	userID, err := s.ValidateRefreshToken(ctx, token)
	if err != nil {
		return TokenResponse{}, err
	}
	if err := s.store.RevokeRefreshToken(ctx, token); err != nil {
		return TokenResponse{}, store.AppError(err, "refresh token")
	}
	return s.GenerateTokens(ctx, userID)
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	if claims.Type != tokenTypeAccess {
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}

func (s *Service) signToken(userID, typ string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.Unauthorized, Code: "token_invalid", Message: "token invalid", Err: err}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

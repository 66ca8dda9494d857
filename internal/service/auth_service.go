package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"openmates/payhub/internal/config"
	"openmates/payhub/internal/model"
	"openmates/payhub/internal/repository"
	"openmates/payhub/pkg/crypto"
	jwtpkg "openmates/payhub/pkg/jwt"
)

const (
	stateKeyRefresh = "refresh:"
	stateKeyTwoFA   = "2fa:"
)

// TokenSet represents a set of tokens returned after authentication.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResult is either a token set or a pending 2FA challenge.
type LoginResult struct {
	TokenSet          *TokenSet `json:"token_set,omitempty"`
	TwoFactorRequired bool      `json:"two_factor_required"`
	ChallengeID       string    `json:"challenge_id,omitempty"`
}

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyTwoFactor(ctx context.Context, challengeID, code string) (*TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	userRepo     repository.UserRepository
	identityRepo repository.IdentityRepository
	stateStore   repository.StateStore
	jwtManager   *jwtpkg.Manager
	mailSender   MailSender
	twoFACfg     config.TwoFAConfig
}

func NewAuthService(
	userRepo repository.UserRepository,
	identityRepo repository.IdentityRepository,
	stateStore repository.StateStore,
	jwtManager *jwtpkg.Manager,
	mailSender MailSender,
	twoFACfg config.TwoFAConfig,
) AuthService {
	return &authService{
		userRepo:     userRepo,
		identityRepo: identityRepo,
		stateStore:   stateStore,
		jwtManager:   jwtManager,
		mailSender:   mailSender,
		twoFACfg:     twoFACfg,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	_, err := s.identityRepo.GetByTypeAndIdentifier(ctx, model.IdentityTypePassword, email)
	if err == nil {
		return nil, ErrIdentityAlreadyExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check identity: %w", err)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username: username,
		Email:    email,
		Status:   model.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	identity := &model.UserIdentity{
		UserID:         user.ID,
		IdentityType:   model.IdentityTypePassword,
		Identifier:     email,
		CredentialData: model.CredentialData{"password_hash": hash},
	}
	if err := s.identityRepo.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	identity, err := s.identityRepo.GetByTypeAndIdentifier(ctx, model.IdentityTypePassword, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}

	hash, _ := identity.CredentialData["password_hash"].(string)
	if hash == "" || !crypto.CheckPassword(password, hash) {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrUserDisabled
	}

	if s.twoFACfg.Enabled && user.TwoFactorEnabled {
		challengeID, err := s.beginTwoFactorChallenge(ctx, user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{TwoFactorRequired: true, ChallengeID: challengeID}, nil
	}

	tokenSet, err := s.issueTokenSet(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenSet: tokenSet}, nil
}

// twoFactorChallenge is the state-store record backing one pending 2FA login.
type twoFactorChallenge struct {
	UserID   uuid.UUID `json:"user_id"`
	Code     string    `json:"code"`
	Attempts int       `json:"attempts"`
}

func (s *authService) beginTwoFactorChallenge(ctx context.Context, user *model.User) (string, error) {
	code, err := crypto.GenerateNumericCode(s.twoFACfg.CodeDigits)
	if err != nil {
		return "", fmt.Errorf("generate 2fa code: %w", err)
	}

	challengeID := uuid.New().String()
	data, _ := json.Marshal(twoFactorChallenge{UserID: user.ID, Code: code})
	if err := s.stateStore.Set(ctx, stateKeyTwoFA+challengeID, data, s.twoFACfg.CodeTTL); err != nil {
		return "", fmt.Errorf("store 2fa challenge: %w", err)
	}

	if s.mailSender != nil {
		body := fmt.Sprintf("Your verification code is %s. It expires in %s.", code, s.twoFACfg.CodeTTL)
		if err := s.mailSender.Send(ctx, user.Email, "Your login code", body); err != nil {
			_ = s.stateStore.Delete(ctx, stateKeyTwoFA+challengeID)
			return "", fmt.Errorf("send 2fa code: %w", err)
		}
	}

	return challengeID, nil
}

func (s *authService) VerifyTwoFactor(ctx context.Context, challengeID, code string) (*TokenSet, error) {
	key := stateKeyTwoFA + challengeID
	data, err := s.stateStore.Get(ctx, key)
	if err != nil || data == nil {
		return nil, ErrChallengeNotFound
	}

	var challenge twoFactorChallenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		_ = s.stateStore.Delete(ctx, key)
		return nil, ErrChallengeNotFound
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		challenge.Attempts++
		if challenge.Attempts >= s.twoFACfg.MaxAttempts {
			_ = s.stateStore.Delete(ctx, key)
			return nil, ErrChallengeNotFound
		}
		updated, _ := json.Marshal(challenge)
		_ = s.stateStore.Set(ctx, key, updated, s.twoFACfg.CodeTTL)
		return nil, ErrTwoFactorCodeInvalid
	}

	// Single use.
	_ = s.stateStore.Delete(ctx, key)

	user, err := s.userRepo.GetByID(ctx, challenge.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrUserDisabled
	}

	return s.issueTokenSet(ctx, user.ID)
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	claims, err := s.jwtManager.Validate(refreshToken)
	if err != nil || claims.TokenType != jwtpkg.TokenTypeRefresh {
		return nil, ErrRefreshTokenInvalid
	}

	exists, err := s.stateStore.Exists(ctx, stateKeyRefresh+claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check refresh token: %w", err)
	}
	if !exists {
		return nil, ErrRefreshTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrUserDisabled
	}

	// Rotate: the presented token is revoked before a new one is issued.
	if err := s.stateStore.Delete(ctx, stateKeyRefresh+claims.ID); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.issueTokenSet(ctx, user.ID)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtManager.Validate(refreshToken)
	if err != nil || claims.TokenType != jwtpkg.TokenTypeRefresh {
		return ErrRefreshTokenInvalid
	}
	return s.stateStore.Delete(ctx, stateKeyRefresh+claims.ID)
}

func (s *authService) issueTokenSet(ctx context.Context, userID uuid.UUID) (*TokenSet, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, refreshClaims, err := s.jwtManager.GenerateRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	idToken, err := s.jwtManager.GenerateIDToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate id token: %w", err)
	}

	// Track the JTI so refresh tokens can be revoked.
	if err := s.stateStore.Set(ctx, stateKeyRefresh+refreshClaims.ID, userID[:], s.jwtManager.RefreshTokenTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenSet{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IDToken:      idToken,
		ExpiresIn:    int64(s.jwtManager.AccessTokenTTL().Seconds()),
	}, nil
}

// ensure authService implements AuthService
var _ AuthService = (*authService)(nil)

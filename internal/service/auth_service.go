package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dormhub/api/internal/config"
	"dormhub/api/internal/events"
	"dormhub/api/internal/ids"
	"dormhub/api/internal/models"
	"dormhub/api/internal/repository"
	"dormhub/api/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserSuspended      = errors.New("user suspended")
)

type AuthService struct {
	profiles *repository.ProfileRepository
	sessions *repository.SessionRepository
	bus      events.Publisher
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(
	profiles *repository.ProfileRepository,
	sessions *repository.SessionRepository,
	bus events.Publisher,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		profiles: profiles,
		sessions: sessions,
		bus:      bus,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     models.UserRole
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	Profile      models.Profile
	DeviceID     string
	ExpiresAt    time.Time
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}

	if _, err := s.profiles.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, fmt.Errorf("email already registered")
	} else if !errors.Is(err, repository.ErrProfileNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	role := input.Role
	if role == "" {
		role = models.UserRoleStudent
	}

	profile := models.Profile{
		ID:           ids.New(),
		Email:        &input.Email,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	if input.Name != "" {
		profile.Name = &input.Name
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		return AuthResult{}, err
	}

	deviceID := ids.New()
	result, err := s.createSession(ctx, profile, deviceID, "New Device", "", "")
	if err != nil {
		return AuthResult{}, err
	}
	s.publish(ctx, events.TypeSignedIn, profile, result.ExpiresAt)
	return result, nil
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	profile, err := s.profiles.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if profile.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	ok, err := security.VerifyPassword(input.Password, profile.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	deviceID := input.DeviceID
	if deviceID == "" {
		deviceID = ids.New()
	}
	deviceName := input.DeviceName
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	result, err := s.createSession(ctx, profile, deviceID, deviceName, input.IPAddress, input.UserAgent)
	if err != nil {
		return AuthResult{}, err
	}
	s.publish(ctx, events.TypeSignedIn, profile, result.ExpiresAt)
	return result, nil
}

func (s *AuthService) createSession(
	ctx context.Context,
	profile models.Profile,
	deviceID string,
	deviceName string,
	ipAddress string,
	userAgent string,
) (AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           profile.ID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.cfg.Security.JWTRefreshTTL),
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		profile.ID,
		session.ID,
		deviceID,
		emailOf(profile),
		string(profile.Role),
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	if err := s.enforceSessionLimit(ctx, profile.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", profile.ID).Msg("enforce session limit failed")
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile:      profile,
		DeviceID:     deviceID,
		ExpiresAt:    time.Now().Add(s.cfg.Security.JWTAccessTTL),
	}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID string) error {
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.Security.MaxSessions {
		return nil
	}
	return s.sessions.DeleteOldestSessions(ctx, userID, s.cfg.Security.MaxSessions)
}

type RefreshInput struct {
	UserID       string
	RefreshToken string
	DeviceID     string
}

func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	profile, err := s.profiles.GetByID(ctx, input.UserID)
	if err != nil {
		return AuthResult{}, err
	}
	if profile.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	refreshHash := security.HashRefreshToken(input.RefreshToken)
	session, err := s.sessions.FindByRefreshHash(ctx, input.UserID, refreshHash)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.DeviceID != input.DeviceID {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.ExpiresAt.Before(time.Now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	refreshToken, newHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session.RefreshTokenHash = newHash
	session.ExpiresAt = time.Now().Add(s.cfg.Security.JWTRefreshTTL)

	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		profile.ID,
		session.ID,
		session.DeviceID,
		emailOf(profile),
		string(profile.Role),
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	result := AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile:      profile,
		DeviceID:     session.DeviceID,
		ExpiresAt:    time.Now().Add(s.cfg.Security.JWTAccessTTL),
	}
	s.publish(ctx, events.TypeTokenRefreshed, profile, result.ExpiresAt)
	return result, nil
}

func (s *AuthService) Logout(ctx context.Context, userID string, deviceID string) error {
	if err := s.sessions.DeleteByDevice(ctx, userID, deviceID); err != nil {
		return err
	}
	s.publish(ctx, events.TypeSignedOut, models.Profile{ID: userID}, time.Time{})
	return nil
}

// publish is best-effort: the event feed is a convenience for subscribers,
// never a dependency of the auth operation itself.
func (s *AuthService) publish(ctx context.Context, eventType string, profile models.Profile, expiresAt time.Time) {
	if s.bus == nil {
		return
	}
	event := events.AuthEvent{
		Type:      eventType,
		Identity:  profile.ID,
		Email:     emailOf(profile),
		ExpiresAt: expiresAt,
		At:        time.Now(),
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("auth event publish failed")
	}
}

func emailOf(profile models.Profile) string {
	if profile.Email == nil {
		return ""
	}
	return *profile.Email
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"showroom/internal/activity"
	"showroom/internal/auth"
	"showroom/internal/errors"
	"showroom/internal/events"
	"showroom/internal/mailer"
	"showroom/internal/model"
	"showroom/internal/repository"
	"showroom/internal/session"
)

// ErrUserAlreadyExists is returned when signing up with a registered email.
var ErrUserAlreadyExists = session.NewAuthError(session.CodeAccountExists, "user already exists", nil)

// AuthService is the identity provider: it owns credentials and sessions.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*model.Identity, error)
	SignIn(ctx context.Context, email, password string) (*session.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*session.Session, error)
	// SignOut revokes the access token described by claims and the refresh token, if given.
	SignOut(ctx context.Context, claims *auth.Claims, refreshToken string) error
	ConfirmEmail(ctx context.Context, token string) (*model.Profile, error)
}

// AuthConfig holds the settings AuthService needs beyond its collaborators.
type AuthConfig struct {
	PublicURL       string
	ConfirmationTTL time.Duration
}

type authService struct {
	identities repository.IdentityRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	mailer     mailer.Mailer
	events     events.Publisher
	activity   activity.Sink
	logger     *slog.Logger
	cfg        AuthConfig
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	identities repository.IdentityRepository,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	mail mailer.Mailer,
	publisher events.Publisher,
	sink activity.Sink,
	logger *slog.Logger,
	cfg AuthConfig,
) AuthService {
	if cfg.ConfirmationTTL <= 0 {
		cfg.ConfirmationTTL = 24 * time.Hour
	}
	return &authService{
		identities: identities,
		jwtService: jwtService,
		tokenStore: tokenStore,
		mailer:     mail,
		events:     publisher,
		activity:   sink,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an identity with a pending profile and mails a confirmation link.
func (s *authService) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	email = normalizeEmail(email)

	existing, err := s.identities.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("check identity existence: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := &model.Identity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
	}
	if _, err := s.identities.CreateWithProfile(ctx, identity); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	if err := s.sendConfirmation(ctx, identity); err != nil {
		// The account exists; the user can ask for another link.
		s.logger.Error("failed to send confirmation", "identity_id", identity.ID, "error", err)
	}

	s.activity.Record(ctx, activity.Event{
		Type:      activity.TypeSignUp,
		ActorID:   identity.ID.String(),
		SubjectID: identity.ID.String(),
		Resource:  "identity",
	})
	return identity, nil
}

func (s *authService) sendConfirmation(ctx context.Context, identity *model.Identity) error {
	token, err := auth.GenerateOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate confirmation token: %w", err)
	}
	if err := s.tokenStore.StoreConfirmationToken(ctx, token, identity.ID.String(), s.cfg.ConfirmationTTL); err != nil {
		return fmt.Errorf("store confirmation token: %w", err)
	}
	link := strings.TrimRight(s.cfg.PublicURL, "/") + "/api/auth/confirm?token=" + url.QueryEscape(token)
	return s.mailer.SendConfirmation(ctx, identity.Email, link)
}

// SignIn verifies credentials and issues a session.
func (s *authService) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	email = normalizeEmail(email)

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("find identity: %w", err)
		}
		s.recordFailedSignIn(ctx, "", email)
		return nil, session.ErrInvalidCredentials
	}

	if !auth.ComparePassword(identity.PasswordHash, password) {
		s.recordFailedSignIn(ctx, identity.ID.String(), email)
		return nil, session.ErrInvalidCredentials
	}

	if !identity.EmailConfirmed() {
		return nil, session.ErrEmailNotConfirmed
	}

	sess, err := s.issue(ctx, identity.ID, identity.Email)
	if err != nil {
		return nil, err
	}

	if err := s.identities.TouchSignIn(ctx, identity.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record sign-in time", "identity_id", identity.ID, "error", err)
	}
	s.publish(ctx, session.ChangeSignedIn, identity.ID.String())
	s.activity.Record(ctx, activity.Event{
		Type:     activity.TypeSignIn,
		ActorID:  identity.ID.String(),
		Resource: "session",
	})
	return sess, nil
}

func (s *authService) recordFailedSignIn(ctx context.Context, identityID, email string) {
	s.activity.Record(ctx, activity.Event{
		Type:      activity.TypeSignInFailed,
		SubjectID: identityID,
		Resource:  "session",
		Detail:    map[string]any{"email": email},
	})
}

// issue creates an access token plus a stored refresh token.
func (s *authService) issue(ctx context.Context, identityID uuid.UUID, email string) (*session.Session, error) {
	access, err := s.jwtService.GenerateAccessToken(identityID, email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.jwtService.GenerateRefreshToken(identityID, email)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokenStore.StoreRefreshToken(ctx, refresh.ID, identityID.String(), email, s.jwtService.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &session.Session{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.ExpiresAt,
		Identity:     session.Identity{ID: identityID.String(), Email: email},
	}, nil
}

// Refresh exchanges a refresh token for a new session. Refresh tokens are
// single use.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	claims, err := s.jwtService.ValidateToken(refreshToken)
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	storedID, storedEmail, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return nil, errors.ErrInvalidToken
	}
	if storedID != claims.Subject || storedEmail != claims.Email {
		return nil, errors.ErrInvalidToken
	}

	identityID, err := claims.IdentityID()
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	if err := s.tokenStore.DeleteRefreshToken(ctx, claims.ID); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issue(ctx, identityID, claims.Email)
}

// SignOut revokes tokens and tells the identity's other clients.
func (s *authService) SignOut(ctx context.Context, claims *auth.Claims, refreshToken string) error {
	if refreshToken != "" {
		if tokenID, err := s.jwtService.ExtractTokenID(refreshToken); err == nil {
			if err := s.tokenStore.DeleteRefreshToken(ctx, tokenID); err != nil {
				return fmt.Errorf("delete refresh token: %w", err)
			}
		}
	}

	if claims == nil {
		return nil
	}
	if claims.ExpiresAt != nil {
		if err := s.tokenStore.BlacklistAccessToken(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now())); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	s.publish(ctx, session.ChangeSignedOut, claims.Subject)
	s.activity.Record(ctx, activity.Event{
		Type:     activity.TypeSignOut,
		ActorID:  claims.Subject,
		Resource: "session",
	})
	return nil
}

// ConfirmEmail consumes a confirmation token and approves the pending profile.
func (s *authService) ConfirmEmail(ctx context.Context, token string) (*model.Profile, error) {
	if token == "" {
		return nil, errors.ErrInvalidToken
	}
	rawID, err := s.tokenStore.ConsumeConfirmationToken(ctx, token)
	if err != nil {
		if err == auth.ErrTokenNotFound {
			return nil, errors.ErrInvalidToken
		}
		return nil, fmt.Errorf("consume confirmation token: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	profile, err := s.identities.ConfirmEmail(ctx, id, s.now().UTC())
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrInvalidToken
		}
		return nil, fmt.Errorf("confirm email: %w", err)
	}

	s.publish(ctx, session.ChangeUserUpdated, id.String())
	s.activity.Record(ctx, activity.Event{
		Type:      activity.TypeEmailConfirmed,
		ActorID:   id.String(),
		SubjectID: id.String(),
		Resource:  "profile",
		Detail:    map[string]any{"status": profile.Status},
	})
	return profile, nil
}

func (s *authService) publish(ctx context.Context, kind session.ChangeKind, identityID string) {
	err := s.events.Publish(ctx, events.Notification{
		Kind:       kind,
		IdentityID: identityID,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish session event", "kind", kind, "identity_id", identityID, "error", err)
	}
}

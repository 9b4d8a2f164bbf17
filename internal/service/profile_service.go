package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"showroom/internal/activity"
	"showroom/internal/cache"
	"showroom/internal/errors"
	"showroom/internal/events"
	"showroom/internal/model"
	"showroom/internal/repository"
	"showroom/internal/session"
)

const profileCacheTTL = time.Minute

// statusTransitions lists the statuses a master may move a profile to.
var statusTransitions = map[model.ProfileStatus][]model.ProfileStatus{
	model.StatusPending:  {model.StatusApproved, model.StatusRejected},
	model.StatusApproved: {model.StatusRejected},
	model.StatusRejected: {model.StatusApproved},
}

// CanTransition reports whether a profile may move from one status to another.
func CanTransition(from, to model.ProfileStatus) bool {
	if from == to {
		return true
	}
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ProfileUpdate carries the fields a master may change. Nil means unchanged.
type ProfileUpdate struct {
	Role   *model.Role
	Status *model.ProfileStatus
}

// ProfileService reads profiles and lets masters manage them.
type ProfileService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// FetchProfile returns nil, nil when the identity has no profile row.
	FetchProfile(ctx context.Context, identityID string) (*model.Profile, error)
	List(ctx context.Context, actor session.State, status model.ProfileStatus) ([]model.Profile, error)
	Update(ctx context.Context, actor session.State, id uuid.UUID, in ProfileUpdate) (*model.Profile, error)
}

type profileService struct {
	repo     repository.ProfileRepository
	cache    *cache.Client
	events   events.Publisher
	activity activity.Sink
	logger   *slog.Logger
	loads    singleflight.Group
}

var _ session.ProfileFetcher = (ProfileService)(nil)

// NewProfileService creates a new profile service.
func NewProfileService(repo repository.ProfileRepository, cache *cache.Client, publisher events.Publisher, sink activity.Sink, logger *slog.Logger) ProfileService {
	return &profileService{
		repo:     repo,
		cache:    cache,
		events:   publisher,
		activity: sink,
		logger:   logger,
	}
}

func (s *profileService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("profile:%s", id.String())
}

// Get retrieves a profile by identity id with caching. Concurrent misses
// for the same id share one query.
func (s *profileService) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.Profile
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	v, err, _ := s.loads.Do(id.String(), func() (interface{}, error) {
		// Shared by every waiting caller, so one cancellation must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		profile, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, errors.ErrNotFound
			}
			return nil, fmt.Errorf("find profile: %w", err)
		}
		if payload, err := json.Marshal(profile); err == nil {
			_ = s.cache.Set(ctx, s.cacheKey(id), payload, profileCacheTTL)
		}
		return profile, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Profile).Clone(), nil
}

// FetchProfile adapts Get to session.ProfileFetcher.
func (s *profileService) FetchProfile(ctx context.Context, identityID string) (*model.Profile, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return nil, nil
	}
	profile, err := s.Get(ctx, id)
	if err == errors.ErrNotFound {
		return nil, nil
	}
	return profile, err
}

// List returns profiles for the user management page.
func (s *profileService) List(ctx context.Context, actor session.State, status model.ProfileStatus) ([]model.Profile, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.IsValid() {
		return nil, errors.ErrInvalidStatus
	}
	profiles, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// Update changes role and/or status of another identity's profile.
func (s *profileService) Update(ctx context.Context, actor session.State, id uuid.UUID, in ProfileUpdate) (*model.Profile, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if actor.IdentityID() == id.String() {
		return nil, errors.ErrSelfModification
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}

	role, status := current.Role, current.Status
	if in.Role != nil {
		if !in.Role.IsValid() {
			return nil, errors.ErrInvalidRole
		}
		role = *in.Role
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, errors.ErrInvalidStatus
		}
		status = *in.Status
	}
	if !CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, current.Status, status)
	}
	if role == current.Role && status == current.Status {
		return current, nil
	}

	if err := s.repo.UpdateRoleStatus(ctx, id, role, status); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))

	if err := s.events.Publish(ctx, events.Notification{Kind: session.ChangeUserUpdated, IdentityID: id.String()}); err != nil {
		s.logger.Warn("failed to publish profile change", "identity_id", id, "error", err)
	}
	s.activity.Record(ctx, activity.Event{
		Type:      activity.TypeProfileUpdated,
		ActorID:   actor.IdentityID(),
		SubjectID: id.String(),
		Resource:  "profile",
		Detail: map[string]any{
			"role_from":   current.Role,
			"role_to":     role,
			"status_from": current.Status,
			"status_to":   status,
		},
	})

	updated := current.Clone()
	updated.Role, updated.Status = role, status
	updated.UpdatedAt = time.Now().UTC()
	return updated, nil
}

func requireMaster(actor session.State) error {
	if err := requireApproved(actor); err != nil {
		return err
	}
	if !actor.HasRole(model.RoleMaster) {
		return errors.ErrForbidden
	}
	return nil
}

func requireApproved(actor session.State) error {
	switch {
	case !actor.IsAuthenticated():
		return errors.ErrUnauthenticated
	case actor.Profile != nil && actor.Profile.Status == model.StatusRejected:
		return errors.ErrForbidden
	case !actor.IsApproved():
		return errors.ErrApprovalPending
	default:
		return nil
	}
}

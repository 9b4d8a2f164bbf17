package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"showroom/internal/activity"
	"showroom/internal/errors"
	"showroom/internal/model"
	"showroom/internal/repository"
	"showroom/internal/session"
)

// OwnedPtr is satisfied by pointers to catalog models.
type OwnedPtr[T any] interface {
	*T
	model.Owned
}

// CatalogService applies the session capability rules to one catalog entity.
// Reads need an approved profile, creates too, and edits and deletes go
// through CanEdit and CanDelete on the row owner.
type CatalogService[T any, P OwnedPtr[T]] struct {
	repo     repository.CatalogRepository[T]
	resource string
	activity activity.Sink

	// prepare validates references and fills derived fields before a write.
	prepare func(ctx context.Context, row *T) error
	// link stores many-to-many associations through repo, in the same
	// transaction as the row.
	link func(ctx context.Context, repo repository.CatalogRepository[T], row *T) error
}

// NewBrandService creates the brand service.
func NewBrandService(repo repository.CatalogRepository[model.Brand], sink activity.Sink) *CatalogService[model.Brand, *model.Brand] {
	return &CatalogService[model.Brand, *model.Brand]{repo: repo, resource: "brand", activity: sink}
}

// NewTagService creates the tag service. Slugs default to the slugified name.
func NewTagService(repo repository.CatalogRepository[model.Tag], sink activity.Sink) *CatalogService[model.Tag, *model.Tag] {
	return &CatalogService[model.Tag, *model.Tag]{
		repo:     repo,
		resource: "tag",
		activity: sink,
		prepare: func(_ context.Context, tag *model.Tag) error {
			if tag.Slug == "" {
				tag.Slug = Slugify(tag.Name)
			} else {
				tag.Slug = Slugify(tag.Slug)
			}
			if tag.Slug == "" {
				return fmt.Errorf("%w: tag slug is empty", errors.ErrValidation)
			}
			return nil
		},
	}
}

// NewItemService creates the item service. Brand and tag references must exist.
func NewItemService(
	items repository.CatalogRepository[model.Item],
	brands repository.CatalogRepository[model.Brand],
	tags repository.CatalogRepository[model.Tag],
	sink activity.Sink,
) *CatalogService[model.Item, *model.Item] {
	return &CatalogService[model.Item, *model.Item]{
		repo:     items,
		resource: "item",
		activity: sink,
		prepare: func(ctx context.Context, item *model.Item) error {
			if item.Price.IsNegative() {
				return fmt.Errorf("%w: price must not be negative", errors.ErrValidation)
			}
			if item.BrandID != nil {
				if _, err := brands.FindByID(ctx, *item.BrandID); err != nil {
					if err == gorm.ErrRecordNotFound {
						return fmt.Errorf("%w: brand %s", errors.ErrInvalidReference, *item.BrandID)
					}
					return fmt.Errorf("find brand: %w", err)
				}
			}
			item.Brand = nil
			if item.Tags == nil {
				return nil
			}
			found, err := resolve(ctx, tags, idsOf(item.Tags, func(t model.Tag) uuid.UUID { return t.ID }), "tag")
			if err != nil {
				return err
			}
			item.Tags = found
			return nil
		},
		link: func(ctx context.Context, repo repository.CatalogRepository[model.Item], item *model.Item) error {
			if item.Tags == nil {
				return nil
			}
			return repo.ReplaceAssociation(ctx, item, "Tags", item.Tags)
		},
	}
}

// NewProjectService creates the project service. Item references must exist.
func NewProjectService(
	projects repository.CatalogRepository[model.Project],
	items repository.CatalogRepository[model.Item],
	sink activity.Sink,
) *CatalogService[model.Project, *model.Project] {
	return &CatalogService[model.Project, *model.Project]{
		repo:     projects,
		resource: "project",
		activity: sink,
		prepare: func(ctx context.Context, project *model.Project) error {
			if project.Items == nil {
				return nil
			}
			found, err := resolve(ctx, items, idsOf(project.Items, func(i model.Item) uuid.UUID { return i.ID }), "item")
			if err != nil {
				return err
			}
			project.Items = found
			return nil
		},
		link: func(ctx context.Context, repo repository.CatalogRepository[model.Project], project *model.Project) error {
			if project.Items == nil {
				return nil
			}
			return repo.ReplaceAssociation(ctx, project, "Items", project.Items)
		},
	}
}

// Resource names the entity in activity events.
func (s *CatalogService[T, P]) Resource() string {
	return s.resource
}

// List returns a page of rows and the total match count.
func (s *CatalogService[T, P]) List(ctx context.Context, actor session.State, opts repository.ListOptions) ([]T, int64, error) {
	if err := requireApproved(actor); err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list %ss: %w", s.resource, err)
	}
	return rows, total, nil
}

// Get returns one row.
func (s *CatalogService[T, P]) Get(ctx context.Context, actor session.State, id uuid.UUID) (*T, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Create inserts row owned by the actor.
func (s *CatalogService[T, P]) Create(ctx context.Context, actor session.State, row *T) (*T, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	if !actor.CanCreate() {
		return nil, errors.ErrForbidden
	}
	owner, err := uuid.Parse(actor.IdentityID())
	if err != nil {
		return nil, errors.ErrForbidden
	}
	P(row).AssignOwner(owner)

	if err := s.write(ctx, row, true); err != nil {
		return nil, err
	}
	s.record(ctx, activity.TypeCatalogCreated, actor, P(row).OwnerRef(), row)
	return row, nil
}

// Update applies changes to an existing row if the actor may edit it.
// apply must not change the id or the owner.
func (s *CatalogService[T, P]) Update(ctx context.Context, actor session.State, id uuid.UUID, apply func(row *T)) (*T, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	row, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := P(row).OwnerRef()
	if !actor.CanEdit(owner.String()) {
		return nil, errors.ErrForbidden
	}

	apply(row)
	P(row).AssignOwner(owner)

	if err := s.write(ctx, row, false); err != nil {
		return nil, err
	}
	s.record(ctx, activity.TypeCatalogUpdated, actor, owner, row)
	return s.find(ctx, id)
}

// Delete removes a row if the actor may delete it.
func (s *CatalogService[T, P]) Delete(ctx context.Context, actor session.State, id uuid.UUID) error {
	if err := requireApproved(actor); err != nil {
		return err
	}
	row, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	owner := P(row).OwnerRef()
	if !actor.CanDelete(owner.String()) {
		return errors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", s.resource, err)
	}
	s.record(ctx, activity.TypeCatalogDeleted, actor, owner, row)
	return nil
}

func (s *CatalogService[T, P]) find(ctx context.Context, id uuid.UUID) (*T, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("find %s: %w", s.resource, err)
	}
	return row, nil
}

// write stores the row and its associations in one transaction.
func (s *CatalogService[T, P]) write(ctx context.Context, row *T, create bool) error {
	if s.prepare != nil {
		if err := s.prepare(ctx, row); err != nil {
			return err
		}
	}
	return s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.CatalogRepository[T]) error {
		save := repo.Update
		if create {
			save = repo.Create
		}
		if err := save(ctx, row); err != nil {
			if err == gorm.ErrDuplicatedKey {
				return fmt.Errorf("%w: %s", errors.ErrConflict, s.resource)
			}
			return fmt.Errorf("save %s: %w", s.resource, err)
		}
		if s.link != nil {
			if err := s.link(ctx, repo, row); err != nil {
				return fmt.Errorf("link %s: %w", s.resource, err)
			}
		}
		return nil
	})
}

func (s *CatalogService[T, P]) record(ctx context.Context, t activity.Type, actor session.State, owner uuid.UUID, row *T) {
	s.activity.Record(ctx, activity.Event{
		Type:     t,
		ActorID:  actor.IdentityID(),
		Resource: s.resource,
		Detail:   map[string]any{"owner_id": owner.String(), "row": row},
	})
}

func idsOf[T any](rows []T, id func(T) uuid.UUID) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, r := range rows {
		v := id(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}
	return ids
}

func resolve[T any](ctx context.Context, repo repository.CatalogRepository[T], ids []uuid.UUID, name string) ([]T, error) {
	found, err := repo.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find %ss: %w", name, err)
	}
	if len(found) != len(ids) {
		return nil, fmt.Errorf("%w: unknown %s id", errors.ErrInvalidReference, name)
	}
	return found, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"showroom/internal/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ListOptions narrows a list query.
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return defaultPageSize
	case o.Limit > maxPageSize:
		return maxPageSize
	default:
		return o.Limit
	}
}

// CatalogRepository defines persistence operations shared by catalog entities.
type CatalogRepository[T any] interface {
	Create(ctx context.Context, row *T) error
	Update(ctx context.Context, row *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error)
	List(ctx context.Context, opts ListOptions) ([]T, int64, error)
	// ReplaceAssociation swaps the rows of a many-to-many association.
	ReplaceAssociation(ctx context.Context, row *T, association string, values interface{}) error
	// WithTransaction runs fn with a repository bound to one transaction. It
	// commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo CatalogRepository[T]) error) error
}

type catalogRepository[T any] struct {
	db          *gorm.DB
	searchField string
	order       string
	preloads    []string
}

// NewBrandRepository creates a brand repository.
func NewBrandRepository(db *gorm.DB) CatalogRepository[model.Brand] {
	return &catalogRepository[model.Brand]{db: db, searchField: "name", order: "name ASC"}
}

// NewTagRepository creates a tag repository.
func NewTagRepository(db *gorm.DB) CatalogRepository[model.Tag] {
	return &catalogRepository[model.Tag]{db: db, searchField: "name", order: "name ASC"}
}

// NewItemRepository creates an item repository. Items load with their brand and tags.
func NewItemRepository(db *gorm.DB) CatalogRepository[model.Item] {
	return &catalogRepository[model.Item]{
		db:          db,
		searchField: "name",
		order:       "created_at DESC",
		preloads:    []string{"Brand", "Tags"},
	}
}

// NewProjectRepository creates a project repository. Projects load with their items.
func NewProjectRepository(db *gorm.DB) CatalogRepository[model.Project] {
	return &catalogRepository[model.Project]{
		db:          db,
		searchField: "title",
		order:       "created_at DESC",
		preloads:    []string{"Items"},
	}
}

// Create inserts scalar columns only; associations go through ReplaceAssociation.
func (r *catalogRepository[T]) Create(ctx context.Context, row *T) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(row).Error
}

// Update saves scalar columns only.
func (r *catalogRepository[T]) Update(ctx context.Context, row *T) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(row).Error
}

func (r *catalogRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *catalogRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var row T
	if err := r.query(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *catalogRepository[T]) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	rows := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *catalogRepository[T]) List(ctx context.Context, opts ListOptions) ([]T, int64, error) {
	filtered := r.db.WithContext(ctx).Model(new(T))
	if search := strings.TrimSpace(opts.Search); search != "" {
		filtered = filtered.Where(r.searchField+" LIKE ?", "%"+escapeLike(search)+"%")
	}

	var total int64
	if err := filtered.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := make([]T, 0)
	q := filtered.Session(&gorm.Session{})
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	if err := q.Order(r.order).Limit(opts.limit()).Offset(opts.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *catalogRepository[T]) ReplaceAssociation(ctx context.Context, row *T, association string, values interface{}) error {
	return r.db.WithContext(ctx).Model(row).Association(association).Replace(values)
}

func (r *catalogRepository[T]) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo CatalogRepository[T]) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := *r
		scoped.db = tx
		return fn(ctx, &scoped)
	})
}

func (r *catalogRepository[T]) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

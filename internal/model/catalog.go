package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Owned is implemented by catalog rows that record who created them.
type Owned interface {
	OwnerRef() uuid.UUID
	AssignOwner(id uuid.UUID)
}

// Brand is a furniture manufacturer or label.
type Brand struct {
	ID          uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:char(36);not null;index"`
	Name        string         `json:"name" gorm:"size:255;not null;uniqueIndex"`
	Description string         `json:"description" gorm:"type:text"`
	WebsiteURL  string         `json:"website_url,omitempty" gorm:"size:512"`
	LogoURL     string         `json:"logo_url,omitempty" gorm:"size:512"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// Tag labels items for filtering on the showcase site.
type Tag struct {
	ID        uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID   uuid.UUID      `json:"owner_id" gorm:"type:char(36);not null;index"`
	Name      string         `json:"name" gorm:"size:100;not null"`
	Slug      string         `json:"slug" gorm:"size:100;not null;uniqueIndex"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Item is a single piece of furniture supplied in projects.
type Item struct {
	ID          uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID     uuid.UUID       `json:"owner_id" gorm:"type:char(36);not null;index"`
	BrandID     *uuid.UUID      `json:"brand_id,omitempty" gorm:"type:char(36);index"`
	Name        string          `json:"name" gorm:"size:255;not null;index"`
	Description string          `json:"description" gorm:"type:text"`
	ImageURL    string          `json:"image_url,omitempty" gorm:"size:512"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`

	// Relations
	Brand *Brand `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	Tags  []Tag  `json:"tags,omitempty" gorm:"many2many:item_tags;"`
}

// Project is a completed procurement job shown on the site.
type Project struct {
	ID            uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID       uuid.UUID      `json:"owner_id" gorm:"type:char(36);not null;index"`
	Title         string         `json:"title" gorm:"size:255;not null;index"`
	Client        string         `json:"client,omitempty" gorm:"size:255"`
	Location      string         `json:"location,omitempty" gorm:"size:255"`
	Description   string         `json:"description" gorm:"type:text"`
	CoverImageURL string         `json:"cover_image_url,omitempty" gorm:"size:512"`
	CompletedOn   *time.Time     `json:"completed_on,omitempty"`
	Published     bool           `json:"published" gorm:"default:false;index"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Items []Item `json:"items,omitempty" gorm:"many2many:project_items;"`
}

func (b *Brand) OwnerRef() uuid.UUID      { return b.OwnerID }
func (b *Brand) AssignOwner(id uuid.UUID) { b.OwnerID = id }

func (t *Tag) OwnerRef() uuid.UUID      { return t.OwnerID }
func (t *Tag) AssignOwner(id uuid.UUID) { t.OwnerID = id }

func (i *Item) OwnerRef() uuid.UUID      { return i.OwnerID }
func (i *Item) AssignOwner(id uuid.UUID) { i.OwnerID = id }

func (p *Project) OwnerRef() uuid.UUID      { return p.OwnerID }
func (p *Project) AssignOwner(id uuid.UUID) { p.OwnerID = id }

// BeforeCreate sets UUID before creating the record.
func (b *Brand) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BeforeCreate sets UUID before creating the record.
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// BeforeCreate sets UUID before creating the record.
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// BeforeCreate sets UUID before creating the record.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

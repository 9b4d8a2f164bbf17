package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"showroom/internal/activity"
	"showroom/internal/auth"
	"showroom/internal/config"
	"showroom/internal/db"
	"showroom/internal/errors"
	"showroom/internal/logger"
	"showroom/internal/model"
	"showroom/internal/repository"
	"showroom/internal/service"
	"showroom/internal/session"
)

// seedCatalog is the sample catalog created for the master account.
var seedCatalog = struct {
	brands []model.Brand
	tags   []string
	items  []struct {
		name  string
		brand string
		price string
		tags  []string
	}
	project model.Project
}{
	brands: []model.Brand{
		{Name: "Fritz Hansen", WebsiteURL: "https://fritzhansen.com", Description: "Danish furniture since 1872."},
		{Name: "Vitra", WebsiteURL: "https://www.vitra.com", Description: "Swiss design furniture."},
	},
	tags: []string{"Lounge", "Dining", "Mid-Century Modern"},
	items: []struct {
		name  string
		brand string
		price string
		tags  []string
	}{
		{name: "Egg Chair", brand: "Fritz Hansen", price: "9850.00", tags: []string{"Lounge", "Mid-Century Modern"}},
		{name: "Series 7 Chair", brand: "Fritz Hansen", price: "695.00", tags: []string{"Dining"}},
		{name: "Eames Lounge Chair", brand: "Vitra", price: "8990.00", tags: []string{"Lounge", "Mid-Century Modern"}},
	},
	project: model.Project{
		Title:       "Harbourside Hotel Lobby",
		Client:      "Harbourside Hospitality",
		Location:    "Copenhagen",
		Description: "Lobby and lounge fit-out.",
		Published:   true,
	},
}

func main() {
	email := flag.String("email", envOr("SEED_MASTER_EMAIL", "master@showroom.local"), "master account email")
	password := flag.String("password", os.Getenv("SEED_MASTER_PASSWORD"), "master account password (min 8 characters)")
	withCatalog := flag.Bool("catalog", true, "create the sample catalog")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stdout)

	if len(*password) < 8 {
		log.Error("a master password of at least 8 characters is required (-password or SEED_MASTER_PASSWORD)")
		os.Exit(2)
	}

	log.Info("starting seed")
	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	master, err := seedMaster(ctx, gormDB, log, strings.ToLower(strings.TrimSpace(*email)), *password)
	if err != nil {
		log.Error("failed to seed master account", "error", err)
		os.Exit(1)
	}

	if *withCatalog {
		if err := seedSampleCatalog(ctx, gormDB, log, master); err != nil {
			log.Error("failed to seed catalog", "error", err)
			os.Exit(1)
		}
	}
	log.Info("seed completed", "identity_id", master.IdentityID())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// seedMaster creates a confirmed, approved master account or promotes an
// existing one. Its password is left alone when the account exists.
func seedMaster(ctx context.Context, gormDB *gorm.DB, log *slog.Logger, email, password string) (session.State, error) {
	identities := repository.NewIdentityRepository(gormDB)
	profiles := repository.NewProfileRepository(gormDB)

	identity, err := identities.FindByEmail(ctx, email)
	switch {
	case err == gorm.ErrRecordNotFound:
		hash, err := auth.HashPassword(password)
		if err != nil {
			return session.State{}, err
		}
		now := time.Now().UTC()
		identity = &model.Identity{Email: email, PasswordHash: hash, EmailConfirmedAt: &now}
		if _, err := identities.CreateWithProfile(ctx, identity); err != nil {
			return session.State{}, fmt.Errorf("create identity: %w", err)
		}
		log.Info("created master account", "email", email)
	case err != nil:
		return session.State{}, fmt.Errorf("find identity: %w", err)
	default:
		log.Info("master account already exists", "email", email)
	}

	if err := profiles.UpdateRoleStatus(ctx, identity.ID, model.RoleMaster, model.StatusApproved); err != nil {
		return session.State{}, fmt.Errorf("promote profile: %w", err)
	}
	profile, err := profiles.FindByID(ctx, identity.ID)
	if err != nil {
		return session.State{}, fmt.Errorf("load profile: %w", err)
	}
	return session.Resolved(session.Identity{ID: identity.ID.String(), Email: identity.Email}, profile), nil
}

// seedSampleCatalog goes through the catalog services so ownership and
// references are checked as they are for the API. Rows that already exist
// are skipped.
func seedSampleCatalog(ctx context.Context, gormDB *gorm.DB, log *slog.Logger, master session.State) error {
	sink := activity.LogSink(log)
	brandRepo := repository.NewBrandRepository(gormDB)
	tagRepo := repository.NewTagRepository(gormDB)
	itemRepo := repository.NewItemRepository(gormDB)
	brands := service.NewBrandService(brandRepo, sink)
	tags := service.NewTagService(tagRepo, sink)
	items := service.NewItemService(itemRepo, brandRepo, tagRepo, sink)
	projects := service.NewProjectService(repository.NewProjectRepository(gormDB), itemRepo, sink)

	brandIDs := map[string]model.Brand{}
	for _, b := range seedCatalog.brands {
		brand := b
		created, err := brands.Create(ctx, master, &brand)
		if stderrors.Is(err, errors.ErrConflict) {
			log.Info("brand already exists, skipping catalog", "name", b.Name)
			return nil
		}
		if err != nil {
			return fmt.Errorf("create brand %s: %w", b.Name, err)
		}
		brandIDs[b.Name] = *created
	}

	tagIDs := map[string]model.Tag{}
	for _, name := range seedCatalog.tags {
		created, err := tags.Create(ctx, master, &model.Tag{Name: name})
		if err != nil {
			return fmt.Errorf("create tag %s: %w", name, err)
		}
		tagIDs[name] = *created
	}

	project := seedCatalog.project
	for _, it := range seedCatalog.items {
		price, err := decimal.NewFromString(it.price)
		if err != nil {
			return fmt.Errorf("item %s: %w", it.name, err)
		}
		brand := brandIDs[it.brand]
		item := model.Item{Name: it.name, BrandID: &brand.ID, Price: price, Tags: []model.Tag{}}
		for _, t := range it.tags {
			item.Tags = append(item.Tags, model.Tag{ID: tagIDs[t].ID})
		}
		created, err := items.Create(ctx, master, &item)
		if err != nil {
			return fmt.Errorf("create item %s: %w", it.name, err)
		}
		project.Items = append(project.Items, model.Item{ID: created.ID})
	}

	completed := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	project.CompletedOn = &completed
	if _, err := projects.Create(ctx, master, &project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	log.Info("sample catalog created",
		"brands", len(seedCatalog.brands),
		"tags", len(seedCatalog.tags),
		"items", len(seedCatalog.items),
	)
	return nil
}

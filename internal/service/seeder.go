package service

import (
	"context"
	"fmt"
	"os"

	"turfhub/internal/domain"
	"turfhub/internal/logging"
	"turfhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog is the demo data inserted into empty collections.
type Catalog struct {
	Turfs     []models.Turf      `yaml:"turfs"`
	Equipment []models.Equipment `yaml:"equipment"`
}

func DefaultCatalog() Catalog {
	price := decimal.RequireFromString
	return Catalog{
		Turfs: []models.Turf{
			{ID: "1", Name: "Football Ground A", Type: "football", Size: "large", PricePerHour: price("50.00"), Available: true, Description: "Professional football ground", ImageURL: "/images/football-a.jpg"},
			{ID: "2", Name: "Cricket Ground B", Type: "cricket", Size: "large", PricePerHour: price("75.00"), Available: true, Description: "Professional cricket ground", ImageURL: "/images/cricket-b.jpg"},
			{ID: "3", Name: "Tennis Court C", Type: "tennis", Size: "medium", PricePerHour: price("30.00"), Available: true, Description: "Professional tennis court", ImageURL: "/images/tennis-c.jpg"},
			{ID: "4", Name: "Basketball Court D", Type: "basketball", Size: "medium", PricePerHour: price("25.00"), Available: true, Description: "Professional basketball court", ImageURL: "/images/basketball-d.jpg"},
		},
		Equipment: []models.Equipment{
			{ID: "1", Name: "Football", Category: models.CategorySportingEquipment, Description: "Professional football", Price: price("25.00"), StockQuantity: 10, ImageURL: "/images/football.jpg", Available: true},
			{ID: "2", Name: "Cricket Bat", Category: models.CategorySportingEquipment, Description: "Professional cricket bat", Price: price("45.00"), StockQuantity: 8, ImageURL: "/images/cricket-bat.jpg", Available: true},
			{ID: "3", Name: "Tennis Racket", Category: models.CategorySportingEquipment, Description: "Professional tennis racket", Price: price("35.00"), StockQuantity: 12, ImageURL: "/images/tennis-racket.jpg", Available: true},
			{ID: "4", Name: "Basketball", Category: models.CategorySportingEquipment, Description: "Professional basketball", Price: price("30.00"), StockQuantity: 15, ImageURL: "/images/basketball.jpg", Available: true},
			{ID: "5", Name: "Red Bull", Category: models.CategoryEnergyDrinks, Description: "Energy drink 250ml", Price: price("3.50"), StockQuantity: 50, ImageURL: "/images/red-bull.jpg", Available: true},
			{ID: "6", Name: "Monster Energy", Category: models.CategoryEnergyDrinks, Description: "Energy drink 500ml", Price: price("4.50"), StockQuantity: 40, ImageURL: "/images/monster.jpg", Available: true},
			{ID: "7", Name: "Powerade", Category: models.CategoryEnergyDrinks, Description: "Sports drink 500ml", Price: price("2.50"), StockQuantity: 60, ImageURL: "/images/powerade.jpg", Available: true},
			{ID: "8", Name: "Gatorade", Category: models.CategoryEnergyDrinks, Description: "Sports drink 500ml", Price: price("2.75"), StockQuantity: 55, ImageURL: "/images/gatorade.jpg", Available: true},
			{ID: "9", Name: "Sports Bag", Category: models.CategoryAccessories, Description: "Large sports bag", Price: price("20.00"), StockQuantity: 20, ImageURL: "/images/sports-bag.jpg", Available: true},
			{ID: "10", Name: "Water Bottle", Category: models.CategoryAccessories, Description: "1L water bottle", Price: price("8.00"), StockQuantity: 30, ImageURL: "/images/water-bottle.jpg", Available: true},
		},
	}
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Turfs))
	for i := range c.Turfs {
		t := &c.Turfs[i]
		if t.ID == "" {
			return fmt.Errorf("turf %d: empty id: %w", i, domain.ErrInvalidArgument)
		}
		if seen[t.ID] {
			return fmt.Errorf("turf %s: duplicate id: %w", t.ID, domain.ErrInvalidArgument)
		}
		seen[t.ID] = true
		if err := validateTurf(t); err != nil {
			return fmt.Errorf("turf %s: %w", t.ID, err)
		}
	}

	seen = make(map[string]bool, len(c.Equipment))
	for i := range c.Equipment {
		e := &c.Equipment[i]
		if e.ID == "" {
			return fmt.Errorf("equipment %d: empty id: %w", i, domain.ErrInvalidArgument)
		}
		if seen[e.ID] {
			return fmt.Errorf("equipment %s: duplicate id: %w", e.ID, domain.ErrInvalidArgument)
		}
		seen[e.ID] = true
		if err := validateEquipment(e); err != nil {
			return fmt.Errorf("equipment %s: %w", e.ID, err)
		}
	}
	return nil
}

// Seeder populates empty collections from a catalog. Repeated calls are no-ops.
type Seeder struct {
	store   domain.Store
	catalog Catalog
	logger  *zerolog.Logger
}

func NewSeeder(store domain.Store, catalog Catalog, logger *zerolog.Logger) *Seeder {
	return &Seeder{
		store:   store,
		catalog: catalog,
		logger:  logging.Component(logger, "seeder"),
	}
}

// SeedTurfs reports whether the catalog turfs were inserted.
func (s *Seeder) SeedTurfs(ctx context.Context) (bool, error) {
	existing, err := s.store.GetAllTurfs(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	for i := range s.catalog.Turfs {
		turf := s.catalog.Turfs[i]
		if err := s.store.SaveTurf(ctx, &turf); err != nil {
			return false, err
		}
	}
	s.logger.Info().Int("count", len(s.catalog.Turfs)).Msg("turfs seeded")
	return len(s.catalog.Turfs) > 0, nil
}

// SeedEquipment reports whether the catalog equipment was inserted.
func (s *Seeder) SeedEquipment(ctx context.Context) (bool, error) {
	existing, err := s.store.GetAllEquipment(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	for i := range s.catalog.Equipment {
		equipment := s.catalog.Equipment[i]
		if err := s.store.SaveEquipment(ctx, &equipment); err != nil {
			return false, err
		}
	}
	s.logger.Info().Int("count", len(s.catalog.Equipment)).Msg("equipment seeded")
	return len(s.catalog.Equipment) > 0, nil
}

package database

import (
	"fmt"

	"token-pulse/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MinSeedPrice is the floor for prices in InitialTokens.
const MinSeedPrice = 0.01

// NewDatabase opens the token catalog, migrates the schema and, if seed is set, fills an empty catalog.
func NewDatabase(dsn string, seed bool) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	if seed {
		if _, err := Seed(db, InitialTokens()); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate creates or updates the tokens table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Token{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Seed inserts tokens when the catalog is empty and returns how many were inserted.
// Tokens without an id get a fresh UUID.
func Seed(db *gorm.DB, tokens []models.Token) (int, error) {
	var count int64
	if err := db.Model(&models.Token{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	rows := make([]models.Token, len(tokens))
	for i, t := range tokens {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if !t.Category.Valid() {
			return 0, fmt.Errorf("failed to seed token %q: %w", t.Symbol, models.ErrUnknownCategory)
		}
		rows[i] = t
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if err := db.Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to seed tokens: %w", err)
	}
	return len(rows), nil
}

// InitialTokens is the demo universe used to seed an empty catalog.
// Prices stay at or above MinSeedPrice so that a one-tick move survives 4-place rounding.
func InitialTokens() []models.Token {
	return []models.Token{
		{Name: "Pulse Cat", Symbol: "PCAT", Category: models.CategoryNew, Price: 0.0421, Change24h: 12.4, Volume: 182340, MarketCap: 4210000},
		{Name: "Moon Frog", Symbol: "MFROG", Category: models.CategoryNew, Price: 0.0187, Change24h: -3.1, Volume: 95210, MarketCap: 1870000},
		{Name: "Alpha Byte", Symbol: "ABYTE", Category: models.CategoryNew, Price: 0.3311, Change24h: 48.9, Volume: 612000, MarketCap: 3311000},
		{Name: "Gas Goblin", Symbol: "GOB", Category: models.CategoryNew, Price: 0.0194, Change24h: -17.6, Volume: 40510, MarketCap: 1940000},
		{Name: "Solar Sloth", Symbol: "SLOTH", Category: models.CategoryFinal, Price: 1.2045, Change24h: 5.75, Volume: 1320400, MarketCap: 12045000},
		{Name: "Bonk Bros", Symbol: "BROS", Category: models.CategoryFinal, Price: 0.0764, Change24h: 0.42, Volume: 845000, MarketCap: 7640000},
		{Name: "Lava Lamp", Symbol: "LAVA", Category: models.CategoryFinal, Price: 2.5130, Change24h: -8.03, Volume: 230900, MarketCap: 25130000},
		{Name: "Degen Duck", Symbol: "DUCK", Category: models.CategoryFinal, Price: 0.0151, Change24h: 21.6, Volume: 510200, MarketCap: 1510000},
		{Name: "Orbit Owl", Symbol: "OWL", Category: models.CategoryMigrated, Price: 14.872, Change24h: 2.18, Volume: 9021000, MarketCap: 148720000},
		{Name: "Pixel Panda", Symbol: "PANDA", Category: models.CategoryMigrated, Price: 0.8820, Change24h: -1.27, Volume: 4410000, MarketCap: 88200000},
		{Name: "Quasar", Symbol: "QSR", Category: models.CategoryMigrated, Price: 63.410, Change24h: 0.96, Volume: 18900000, MarketCap: 634100000},
		{Name: "Wallaby", Symbol: "WAL", Category: models.CategoryMigrated, Price: 0.0573, Change24h: -4.44, Volume: 760300, MarketCap: 5730000},
	}
}

// ListTokens returns every token in the catalog ordered by creation.
func ListTokens(db *gorm.DB) ([]models.Token, error) {
	var tokens []models.Token
	if err := db.Order("created_at, id").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// GetToken returns one token. Not found is reported as (nil, nil).
func GetToken(db *gorm.DB, id string) (*models.Token, error) {
	var tokens []models.Token
	if err := db.Where("id = ?", id).Limit(1).Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to get token %s: %w", id, err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return &tokens[0], nil
}

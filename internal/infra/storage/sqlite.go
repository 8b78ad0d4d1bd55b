package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"eso_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists the grant register in SQLite
type Storage struct {
	db *gorm.DB
}

var _ domain.GrantRepository = (*Storage)(nil)

// NewStorage opens (or creates) the register at path.
// An empty path resolves to the per-user config directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.OptionGrant{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "ESO", "data", "grants.db"), nil
}

// Close releases the underlying connection
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Grant Operations
// ======================================================================================

// UpsertGrant creates or replaces a grant, keeping the original CreatedAt
func (s *Storage) UpsertGrant(grant *domain.OptionGrant) error {
	if grant.CreatedAt.IsZero() {
		var existing domain.OptionGrant
		if err := s.db.Select("created_at").First(&existing, "id = ?", grant.ID).Error; err == nil {
			grant.CreatedAt = existing.CreatedAt
		}
	}
	return s.db.Save(grant).Error
}

// GetGrant returns a grant by id, or nil if absent
func (s *Storage) GetGrant(id string) (*domain.OptionGrant, error) {
	var grant domain.OptionGrant
	if err := s.db.First(&grant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

// ListGrants returns all grants ordered by id
func (s *Storage) ListGrants() ([]domain.OptionGrant, error) {
	var grants []domain.OptionGrant
	err := s.db.Order("id").Find(&grants).Error
	return grants, err
}

// ListGrantsByHolder returns one holder's grants ordered by id
func (s *Storage) ListGrantsByHolder(holder string) ([]domain.OptionGrant, error) {
	var grants []domain.OptionGrant
	err := s.db.Where("holder = ?", holder).Order("id").Find(&grants).Error
	return grants, err
}

// DeleteGrant removes a grant. Deleting an absent id is not an error.
func (s *Storage) DeleteGrant(id string) error {
	return s.db.Delete(&domain.OptionGrant{}, "id = ?", id).Error
}

package marketsdk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// cartItemRecord is the stored row for one cart item. The item itself is a
// JSON payload; the order hash is the key the cart de-duplicates on.
type cartItemRecord struct {
	OrderHash string `gorm:"primaryKey;column:order_hash"`
	Position  int    `gorm:"column:position"`
	Payload   string `gorm:"column:payload"`
}

func (cartItemRecord) TableName() string {
	return "cart_items"
}

// SQLiteCartStore persists the cart in a local SQLite database so the
// selection survives restarts.
type SQLiteCartStore struct {
	db *gorm.DB
}

// NewSQLiteCartStore opens (creating if needed) the cart database at path.
func NewSQLiteCartStore(path string) (*SQLiteCartStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cart DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cart database: %w", err)
	}

	if err := db.AutoMigrate(&cartItemRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cart database: %w", err)
	}

	return &SQLiteCartStore{db: db}, nil
}

// Load reads all persisted cart items in insertion order.
func (s *SQLiteCartStore) Load() ([]CartItem, error) {
	var records []cartItemRecord
	if err := s.db.Order("position asc").Find(&records).Error; err != nil {
		return nil, err
	}

	items := make([]CartItem, 0, len(records))
	for _, record := range records {
		var item CartItem
		if err := json.Unmarshal([]byte(record.Payload), &item); err != nil {
			return nil, fmt.Errorf("%w: %s", errCorruptCartPayload, record.OrderHash)
		}
		items = append(items, item)
	}

	return items, nil
}

// Save replaces the stored cart with the given items.
func (s *SQLiteCartStore) Save(items []CartItem) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&cartItemRecord{}).Error; err != nil {
			return err
		}

		for i, item := range items {
			payload, err := json.Marshal(item)
			if err != nil {
				return err
			}
			record := cartItemRecord{
				OrderHash: item.Listing.Hash.Hex(),
				Position:  i,
				Payload:   string(payload),
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// MemoryCartStore keeps cart items in memory only. Useful for tests and
// for callers that handle persistence themselves.
type MemoryCartStore struct {
	items []CartItem
}

// NewMemoryCartStore creates an empty in-memory store.
func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{}
}

// Load returns the stored items.
func (s *MemoryCartStore) Load() ([]CartItem, error) {
	out := make([]CartItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Save replaces the stored items.
func (s *MemoryCartStore) Save(items []CartItem) error {
	s.items = make([]CartItem, len(items))
	copy(s.items, items)
	return nil
}

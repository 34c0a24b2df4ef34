package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Document is one durable key-value record. The bot is single-tenant, so
// records live under fixed logical names (poll-state, weekly-config,
// instant-poll-config).
type Document struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// Store persists JSON documents in the documents table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Load reads the named document into v. Returns false without error when
// the document does not exist yet.
func (s *Store) Load(name string, v any) (bool, error) {
	var doc Document
	if err := s.db.First(&doc, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(doc.Value), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// Save writes v as the named document, replacing any previous value.
func (s *Store) Save(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	doc := Document{Name: name, Value: string(raw)}
	if err := s.db.Save(&doc).Error; err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

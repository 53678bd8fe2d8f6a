package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the base model for all entities.
// Handlers expose CreatedAt/UpdatedAt as "added"/"updated" epoch-second fields
// in their own projections, so no JSON tags are needed here.
type Base struct {
	ID        string    `json:"id" gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

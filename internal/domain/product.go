package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Product struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	Price       int64          `json:"price" gorm:"not null"` // minor units, e.g. cents
	ImageURL    string         `json:"imageUrl"`
	Tags        datatypes.JSON `json:"tags" gorm:"type:jsonb"` // ["pizza", "vegan"]
	CreatedAt   time.Time      `json:"createdAt"`
}

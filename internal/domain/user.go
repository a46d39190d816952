package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered storefront customer. Email and Phone hold ciphertext
// produced by the field encryptor; they are never stored in the clear.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FirstName    string    `json:"firstName" gorm:"not null"`
	LastName     string    `json:"lastName" gorm:"not null"`
	Email        string    `json:"-" gorm:"uniqueIndex;not null"`
	Phone        string    `json:"-" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayName is the name embedded in session tokens.
func (u *User) DisplayName() string {
	return u.FirstName
}

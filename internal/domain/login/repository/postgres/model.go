package postgres

import (
	"strconv"
	"time"

	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// CredentialModel is a GORM model for the credentials table
type CredentialModel struct {
	ID        uint              `gorm:"primaryKey"`
	UserID    string            `gorm:"not null;index"`
	Cookies   map[string]string `gorm:"type:jsonb;serializer:json;not null"`
	IsValid   bool              `gorm:"not null"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime"`
}

func (CredentialModel) TableName() string {
	return "credentials"
}

// ToEntity converts DB model to domain entity
func (m *CredentialModel) ToEntity() *entities.CredentialRecord {
	return &entities.CredentialRecord{
		ID:        strconv.FormatUint(uint64(m.ID), 10),
		UserID:    m.UserID,
		Cookies:   m.Cookies,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		IsValid:   m.IsValid,
	}
}

package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/stock"
	"gorm.io/gorm"
)

// WarehouseLocation is the directory row mapping a storage location to its
// warehouse. Stock tracking treats locations as opaque beyond this membership.
type WarehouseLocation struct {
	shared.BaseEntity
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;index"`
	Code        string    `gorm:"size:64;not null"`
}

// TableName returns the table name for GORM
func (WarehouseLocation) TableName() string {
	return "warehouse_locations"
}

// GormLocationDirectory implements LocationDirectory against the
// warehouse_locations table
type GormLocationDirectory struct {
	db *gorm.DB
}

// NewGormLocationDirectory creates a new GormLocationDirectory
func NewGormLocationDirectory(db *gorm.DB) *GormLocationDirectory {
	return &GormLocationDirectory{db: db}
}

// LocationInWarehouse reports whether the location belongs to the warehouse
func (d *GormLocationDirectory) LocationInWarehouse(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).
		Model(&WarehouseLocation{}).
		Where("id = ? AND warehouse_id = ?", locationID, warehouseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure GormLocationDirectory implements LocationDirectory
var _ stock.LocationDirectory = (*GormLocationDirectory)(nil)

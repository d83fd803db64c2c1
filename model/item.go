package model

import "time"

// Location tags which owner-context an item instance lives in.
// An instance is always in exactly one of the two.
type Location = string

const (
	LocationInventory Location = "inventory"
	LocationEquipped  Location = "equipped"
)

// ShopItem is a catalog entry: an item definition purchasable at a fixed
// price. Price is immutable after creation; name/stat edits do not affect
// instances that were already copied from it.
type ShopItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemCode  int       `gorm:"uniqueIndex;not null" json:"item_code"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Health    int       `gorm:"default:0" json:"health"`
	Power     int       `gorm:"default:0" json:"power"`
	Price     int64     `gorm:"not null" json:"price"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ItemInstance is an owned copy of a catalog entry. Stats and price are
// snapshotted at purchase time. Stacks of the same item code within the
// same location are coalesced into one row, so (char_id, item_code,
// location) is unique. Equipped instances always have Count == 1; no row
// is ever persisted with Count <= 0.
type ItemInstance struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CharID    int64     `gorm:"uniqueIndex:idx_char_item_loc;index:idx_char_items;not null" json:"char_id"`
	ItemCode  int       `gorm:"uniqueIndex:idx_char_item_loc;not null" json:"item_code"`
	Location  Location  `gorm:"uniqueIndex:idx_char_item_loc;size:16;not null" json:"location"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Health    int       `gorm:"default:0" json:"health"`
	Power     int       `gorm:"default:0" json:"power"`
	Price     int64     `gorm:"not null" json:"price"`
	Count     int       `gorm:"default:1" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

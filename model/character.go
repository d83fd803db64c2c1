package model

import "time"

// Character represents a player's in-game character.
// Health and Power are derived fields: base stats plus the stat
// contributions of every equipped item instance. They are persisted for
// cheap reads but recomputed from the equipped set on every mutation.
type Character struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index:idx_account;not null" json:"account_id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Health    int       `gorm:"not null" json:"health"`
	Power     int       `gorm:"not null" json:"power"`
	Money     int64     `gorm:"default:0" json:"money"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

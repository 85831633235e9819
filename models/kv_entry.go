package models

import "time"

// KVEntry stores one whole JSON document under a logical key.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable across backends.
func (KVEntry) TableName() string { return "kv_store" }

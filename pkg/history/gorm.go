package history

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"regscan/models"
)

// GormKV implements KV on a relational database through gorm. The service
// uses it with Postgres.
type GormKV struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn. When migrate is set the kv_store table is
// created or updated.
func OpenPostgres(dsn string, migrate bool) (*GormKV, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	kv := NewGormKV(db)
	if migrate {
		if err := kv.Migrate(); err != nil {
			return nil, err
		}
	}
	return kv, nil
}

// NewGormKV wraps an existing connection.
func NewGormKV(db *gorm.DB) *GormKV { return &GormKV{db: db} }

func (g *GormKV) Migrate() error {
	return eris.Wrap(g.db.AutoMigrate(&models.KVEntry{}), "gorm: migrate kv_store")
}

func (g *GormKV) Get(ctx context.Context, key string) ([]byte, error) {
	var e models.KVEntry
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "gorm: get %s", key)
	}
	return e.Value, nil
}

func (g *GormKV) Put(ctx context.Context, key string, value []byte) error {
	e := models.KVEntry{Key: key, Value: value}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	return eris.Wrapf(err, "gorm: put %s", key)
}

func (g *GormKV) Delete(ctx context.Context, key string) error {
	err := g.db.WithContext(ctx).Where("key = ?", key).Delete(&models.KVEntry{}).Error
	return eris.Wrapf(err, "gorm: delete %s", key)
}

func (g *GormKV) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return eris.Wrap(err, "gorm: underlying db")
	}
	return sqlDB.Close()
}

func (g *GormKV) Backend() string { return "postgres" }

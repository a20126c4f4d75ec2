package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow is one document in the shared documents table.
type documentRow struct {
	Collection string            `gorm:"primaryKey;size:64"`
	ID         string            `gorm:"primaryKey;size:64"`
	Data       datatypes.JSONMap `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

// SQLStore emulates the document model on MySQL or PostgreSQL through gorm.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQL connects with the named driver and migrates the documents table.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, err
	}
	return NewSQLStore(db), nil
}

// NewSQLStore wraps an open gorm connection without migrating.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql get %s/%s: %w", collection, id, err)
	}
	return row.document(), nil
}

func (s *SQLStore) Create(ctx context.Context, collection string, fields Document, id string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	row := documentRow{
		Collection: collection,
		ID:         id,
		Data:       datatypes.JSONMap(withoutID(fields)),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("sql create %s: %w", collection, err)
	}
	return id, nil
}

// Update merges under a row lock so the read-modify-write is one unit.
func (s *SQLStore) Update(ctx context.Context, collection, id string, fields Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND id = ?", collection, id).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("sql update %s/%s: %w", collection, id, err)
		}

		if row.Data == nil {
			row.Data = datatypes.JSONMap{}
		}
		for k, v := range withoutID(fields) {
			row.Data[k] = v
		}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("sql update %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&documentRow{}).Error
	if err != nil {
		return fmt.Errorf("sql delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLStore) FindOne(ctx context.Context, collection, field string, value interface{}) (Document, error) {
	var rows []documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where(datatypes.JSONQuery("data").Equals(value, field)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sql query %s.%s: %w", collection, field, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].document(), nil
}

// List pushes equality filters into JSON predicates and orders in process;
// ordering on JSON paths is not portable between MySQL and PostgreSQL.
func (s *SQLStore) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	query := s.db.WithContext(ctx).Where("collection = ?", collection)
	for _, f := range q.Filters {
		query = query.Where(datatypes.JSONQuery("data").Equals(f.Value, f.Field))
	}

	var rows []documentRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql list %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.document())
	}
	return applyQuery(docs, Query{OrderBy: q.OrderBy, Desc: q.Desc, Limit: q.Limit}), nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *documentRow) document() Document {
	doc := make(Document, len(r.Data)+1)
	for k, v := range r.Data {
		doc[k] = v
	}
	doc["id"] = r.ID
	return doc
}

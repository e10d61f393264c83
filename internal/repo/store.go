package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"claimflow/internal/store"
)

// Store — реализация store.Store поверх gorm (postgres | mysql).
type Store struct{ db *gorm.DB }

var _ store.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// mapErr приводит ошибки gorm к ошибкам store.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return store.ErrDuplicate
	}
	return err
}

// TranslateError в gorm.Config включается не всегда, поэтому ловим и по тексту.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || // postgres
		strings.Contains(msg, "duplicate entry") // mysql
}

// saveExisting обновляет все колонки и возвращает ErrNotFound, если строки нет.
func saveExisting(ctx context.Context, db *gorm.DB, model any) error {
	res := db.WithContext(ctx).Select("*").Updates(model)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

package server

import (
	"gorm.io/gorm"

	"claimflow/internal/memstore"
	"claimflow/internal/repo"
	"claimflow/internal/store"
)

// newStore выбирает реализацию хранилища: gorm при настроенной БД,
// иначе in-memory (данные живут до перезапуска).
func newStore(db *gorm.DB) store.Store {
	if db == nil {
		return memstore.New()
	}
	return repo.NewStore(db)
}

package models

import (
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleFinance  Role = "finance"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

// User — сотрудник из оргструктуры. ManagerID образует лес без циклов.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Department   string    `gorm:"index;size:128" json:"department"`
	BusinessUnit string    `gorm:"size:128" json:"businessUnit"`
	Role         Role      `gorm:"index;size:16;not null" json:"role"`
	Band         string    `gorm:"size:8" json:"band"`
	ManagerID    *string   `gorm:"index;size:36" json:"managerId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BandRank переводит "B3" в 3. Невалидный бэнд — (0, false).
func BandRank(band string) (int, bool) {
	b := strings.TrimSpace(band)
	if len(b) < 2 || (b[0] != 'B' && b[0] != 'b') {
		return 0, false
	}
	n, err := strconv.Atoi(b[1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// BandAtLeast — true, если band не ниже min. Невалидный band ниже любого валидного.
func BandAtLeast(band, min string) bool {
	want, ok := BandRank(min)
	if !ok {
		return false
	}
	got, ok := BandRank(band)
	return ok && got >= want
}

// SameDepartment сравнивает отделы без учёта регистра и пробелов по краям.
func SameDepartment(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

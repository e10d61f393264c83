package approval

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"claimflow/internal/models"
)

// Bracket — строка таблицы порогов: уровень нужен, если сумма строго больше Above.
// Первая строка действует всегда.
type Bracket struct {
	Level models.ApprovalLevel
	Above decimal.Decimal
}

type Brackets []Bracket

func DefaultBrackets() Brackets {
	return Brackets{
		{Level: models.LevelManager, Above: decimal.Zero},
		{Level: models.LevelFinance, Above: decimal.NewFromInt(5000)},
		{Level: models.LevelDirector, Above: decimal.NewFromInt(10000)},
		{Level: models.LevelCXO, Above: decimal.NewFromInt(25000)},
	}
}

func (b Brackets) Validate() error {
	if len(b) == 0 {
		return errors.New("approval brackets: table is empty")
	}
	if b[0].Level != models.LevelManager || !b[0].Above.IsZero() {
		return errors.New("approval brackets: first row must be level manager above 0")
	}
	for i, row := range b {
		if !row.Level.Valid() {
			return fmt.Errorf("approval brackets: row %d has unknown level %d", i, row.Level)
		}
		if i == 0 {
			continue
		}
		prev := b[i-1]
		if row.Level <= prev.Level {
			return fmt.Errorf("approval brackets: row %d level %s must be above %s", i, row.Level, prev.Level)
		}
		if !row.Above.GreaterThan(prev.Above) {
			return fmt.Errorf("approval brackets: row %d threshold %s must exceed %s", i, row.Above, prev.Above)
		}
	}
	return nil
}

// LevelsFor — упорядоченный список уровней, которые должна пройти сумма.
func (b Brackets) LevelsFor(amount decimal.Decimal) []models.ApprovalLevel {
	levels := make([]models.ApprovalLevel, 0, len(b))
	for i, row := range b {
		if i == 0 || amount.GreaterThan(row.Above) {
			levels = append(levels, row.Level)
		}
	}
	return levels
}

// LevelFor — уровень "корзины" суммы, т.е. самый высокий из LevelsFor.
func (b Brackets) LevelFor(amount decimal.Decimal) models.ApprovalLevel {
	levels := b.LevelsFor(amount)
	if len(levels) == 0 {
		return models.LevelManager
	}
	return levels[len(levels)-1]
}

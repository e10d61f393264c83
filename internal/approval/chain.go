package approval

import (
	"context"

	"github.com/shopspring/decimal"

	"claimflow/internal/models"
)

type Step struct {
	Level    models.ApprovalLevel `json:"level"`
	Approver models.User          `json:"approver"`
}

// Gap — уровень, для которого в отделе нет ни одного подходящего согласующего.
type Gap struct {
	Level      models.ApprovalLevel `json:"level"`
	Department string               `json:"department"`
}

// Chain — упорядоченная цепочка согласования суммы. Пробелы не выбрасываются
// молча, а перечисляются в Missing.
type Chain struct {
	Department   string          `json:"department"`
	BusinessUnit string          `json:"businessUnit"`
	Amount       decimal.Decimal `json:"amount"`
	Steps        []Step          `json:"steps"`
	Missing      []Gap           `json:"missing"`
}

func (c Chain) Complete() bool { return len(c.Missing) == 0 }

// Approvers — согласующие по порядку уровней, без пропущенных.
func (c Chain) Approvers() []models.User {
	out := make([]models.User, 0, len(c.Steps))
	for _, s := range c.Steps {
		out = append(out, s.Approver)
	}
	return out
}

// Next — первый разрешённый шаг строго выше уровня after.
func (c Chain) Next(after models.ApprovalLevel) (Step, bool) {
	for _, s := range c.Steps {
		if s.Level > after {
			return s, true
		}
	}
	return Step{}, false
}

// Chain строит цепочку: по одному согласующему на каждый уровень из таблицы
// порогов. businessUnit в подборе не участвует, только возвращается в результате.
func (p *Policy) Chain(ctx context.Context, dir Directory, department, businessUnit string, amount decimal.Decimal) (Chain, error) {
	ch := Chain{
		Department:   department,
		BusinessUnit: businessUnit,
		Amount:       amount,
		Steps:        make([]Step, 0, len(p.cfg.Brackets)),
		Missing:      make([]Gap, 0),
	}
	for _, level := range p.cfg.Brackets.LevelsFor(amount) {
		dept := p.DepartmentFor(level, department)
		users, err := p.ApproversFor(ctx, dir, dept, level)
		if err != nil {
			return Chain{}, err
		}
		if len(users) == 0 {
			ch.Missing = append(ch.Missing, Gap{Level: level, Department: dept})
			continue
		}
		ch.Steps = append(ch.Steps, Step{Level: level, Approver: users[0]})
	}
	return ch, nil
}

package models

// Principal — кто выполняет операцию. Передаётся в сервисы явным
// параметром actor, а не через контекст.
type Principal struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanSeeAll — менеджеры, финансы и админы видят любые заявки.
func (p Principal) CanSeeAll() bool {
	return p.Role == RoleManager || p.Role == RoleFinance || p.Role == RoleAdmin
}

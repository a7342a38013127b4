package models

import "sort"

type (
	Role       string // Роль пользователя
	Capability string // Право на действие
)

const (
	RoleAdmin               Role = "Admin"
	RoleProcurementOfficer  Role = "ProcurementOfficer"
	RoleFinanceDirector     Role = "FinanceDirector"
	RoleTechnicalDirector   Role = "TechnicalDirector"
	RoleProcurementDirector Role = "ProcurementDirector"
	RoleCommitteeMember     Role = "CommitteeMember"
	RoleVendor              Role = "Vendor"

	CapVerifySeal      Capability = "VerifySeal"      // Подтверждение PIN своей роли
	CapIssueSecret     Capability = "IssueSecret"     // Выпуск PIN
	CapManageSettings  Capability = "ManageSettings"  // Настройки кворума
	CapOpenBids        Capability = "OpenBids"        // Вскрытие финансовых предложений
	CapFinalizeAward   Capability = "FinalizeAward"   // Определение победителя
	CapPromoteStandby  Capability = "PromoteStandby"  // Продвижение резервного поставщика
	CapManageLifecycle Capability = "ManageLifecycle" // Создание и согласование заявок
	CapSubmitScores    Capability = "SubmitScores"    // Выставление оценок комиссией
	CapSubmitQuotation Capability = "SubmitQuotation" // Подача предложения поставщиком
)

// DirectorRoles - роли, участвующие в кворуме вскрытия.
var DirectorRoles = []Role{RoleFinanceDirector, RoleTechnicalDirector, RoleProcurementDirector}

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapVerifySeal, CapIssueSecret, CapManageSettings, CapOpenBids,
		CapFinalizeAward, CapPromoteStandby, CapManageLifecycle,
	},
	RoleProcurementOfficer: {
		CapIssueSecret, CapOpenBids, CapFinalizeAward, CapPromoteStandby, CapManageLifecycle,
	},
	RoleFinanceDirector:     {CapVerifySeal},
	RoleTechnicalDirector:   {CapVerifySeal},
	RoleProcurementDirector: {CapVerifySeal},
	RoleCommitteeMember:     {CapSubmitScores},
	RoleVendor:              {CapSubmitQuotation},
}

// ParseRole проверяет, что строка является известной ролью.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleCapabilities[r]
	return r, ok
}

// IsDirectorRole сообщает, участвует ли роль в кворуме.
func IsDirectorRole(r Role) bool {
	for _, d := range DirectorRoles {
		if d == r {
			return true
		}
	}
	return false
}

// Actor - пользователь, от имени которого выполняется операция.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`

	caps map[Capability]struct{}
}

// SystemActor используется внешними планировщиками.
var SystemActor = NewActor("system", "system", []Role{RoleAdmin})

// NewActor собирает пользователя и вычисляет его права один раз.
func NewActor(id, name string, roles []Role) Actor {
	a := Actor{ID: id, Name: name, caps: make(map[Capability]struct{})}
	seen := make(map[Role]bool, len(roles))
	for _, r := range roles {
		if seen[r] {
			continue
		}
		seen[r] = true
		a.Roles = append(a.Roles, r)
		for _, c := range roleCapabilities[r] {
			a.caps[c] = struct{}{}
		}
	}
	sort.Slice(a.Roles, func(i, j int) bool { return a.Roles[i] < a.Roles[j] })
	return a
}

// HasRole проверяет наличие роли.
func (a Actor) HasRole(r Role) bool {
	for _, role := range a.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// HasCapability проверяет наличие права.
func (a Actor) HasCapability(c Capability) bool {
	_, ok := a.caps[c]
	return ok
}

// IsAdmin сообщает об административной роли.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

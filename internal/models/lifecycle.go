package models

// allowedRequisitionTransition - допустимые переходы жизненного цикла заявки.
// Переход в Disputed разрешён из любого нетерминального статуса отдельно.
var allowedRequisitionTransition = map[RequisitionStatus][]RequisitionStatus{
	DraftRequisition:             {PendingApprovalRequisition},
	PendingApprovalRequisition:   {ApprovedRequisition, DraftRequisition},
	ApprovedRequisition:          {AcceptingQuotesRequisition},
	AcceptingQuotesRequisition:   {ReadyForOpeningRequisition},
	ReadyForOpeningRequisition:   {SealedRequisition},
	SealedRequisition:            {UnsealedRequisition},
	UnsealedRequisition:          {ScoringInProgressRequisition},
	ScoringInProgressRequisition: {ScoringCompleteRequisition},
	ScoringCompleteRequisition:   {AwardedRequisition},
	AwardedRequisition:           {ClosedRequisition},
	ClosedRequisition:            {},
	DisputedRequisition:          {},
}

// CanTransition проверяет, допустим ли переход между статусами.
func CanTransition(from, to RequisitionStatus) bool {
	if to == DisputedRequisition {
		return from != DisputedRequisition && from != ClosedRequisition && IsKnownStatus(from)
	}
	for _, s := range allowedRequisitionTransition[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsKnownStatus проверяет, что статус входит в перечисление.
func IsKnownStatus(s RequisitionStatus) bool {
	_, ok := allowedRequisitionTransition[s]
	return ok
}

// IsTerminal сообщает, что из статуса нет автоматических переходов.
func IsTerminal(s RequisitionStatus) bool {
	return s == ClosedRequisition || s == DisputedRequisition
}

// SealStateOf вычисляет состояние запечатывания по флагу и числу подтверждённых ролей.
func SealStateOf(masked bool, verifiedRoles int) SealState {
	switch {
	case !masked:
		return Unsealed
	case verifiedRoles > 0:
		return Unsealing
	default:
		return Sealed
	}
}

// ShouldUnseal сообщает, что кворум набран и предложения нужно раскрыть.
// Для уже раскрытой заявки всегда false: переход однократный.
func ShouldUnseal(masked bool, verifiedRoles, threshold int) bool {
	return masked && threshold >= 1 && verifiedRoles >= threshold
}

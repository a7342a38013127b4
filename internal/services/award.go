package services

import "github.com/senyabanana/procurement-service/internal/models"

// AwardStep - вид следующего состояния при продвижении резервного поставщика.
type AwardStep string

const (
	// StepPromote: текущий победитель отклоняется, лучший резервный становится победителем.
	StepPromote AwardStep = "Promote"
	// StepExhaust: текущий победитель отклоняется, резервных не осталось.
	StepExhaust AwardStep = "Exhaust"
	// StepNone: нет ни победителя, ни резервных.
	StepNone AwardStep = "None"
)

// AwardTransition - результат Advance, который нужно применить к хранилищу.
type AwardTransition struct {
	Step    AwardStep
	Reject  []models.Quotation
	Promote *models.Quotation
}

// better сравнивает ранжированные предложения: меньший ранг, при равенстве меньший id.
func better(a, b models.Quotation) bool {
	if *a.Rank != *b.Rank {
		return *a.Rank < *b.Rank
	}
	return a.ID < b.ID
}

// bestRanked выбирает лучшее предложение среди подходящих по статусу. Без ранга не участвуют.
func bestRanked(quotations []models.Quotation, eligible func(models.Quotation) bool) *models.Quotation {
	var best *models.Quotation
	for i := range quotations {
		q := quotations[i]
		if q.Rank == nil || !eligible(q) {
			continue
		}
		if best == nil || better(q, *best) {
			best = &quotations[i]
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Advance вычисляет следующее состояние каскадного продвижения по текущему набору предложений.
// Функция чистая: она не пишет в хранилище и детерминирована при равных рангах.
func Advance(quotations []models.Quotation) AwardTransition {
	var t AwardTransition
	for _, q := range quotations {
		if q.Status == models.AwardedQuotation {
			t.Reject = append(t.Reject, q)
		}
	}
	t.Promote = bestRanked(quotations, func(q models.Quotation) bool {
		return q.Status == models.StandbyQuotation
	})

	switch {
	case t.Promote != nil:
		t.Step = StepPromote
	case len(t.Reject) > 0:
		t.Step = StepExhaust
	default:
		t.Step = StepNone
	}
	return t
}

// AwardPlan - распределение статусов при определении победителя.
type AwardPlan struct {
	Winner  models.Quotation
	Standby []models.Quotation
}

// PlanAward выбирает победителя с рангом 1 (лучшим из имеющихся) и переводит остальные поданные в резерв.
// Отклонённые предложения не затрагиваются.
func PlanAward(quotations []models.Quotation) (*AwardPlan, bool) {
	winner := bestRanked(quotations, func(q models.Quotation) bool {
		return q.Status != models.RejectedQuotation
	})
	if winner == nil {
		return nil, false
	}
	plan := &AwardPlan{Winner: *winner}
	for _, q := range quotations {
		if q.ID == winner.ID || q.Status == models.RejectedQuotation {
			continue
		}
		if q.Status == models.SubmittedQuotation || q.Status == models.AwardedQuotation {
			plan.Standby = append(plan.Standby, q)
		}
	}
	return plan, true
}

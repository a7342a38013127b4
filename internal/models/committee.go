package models

import "time"

// CommitteeAssignment - участие члена комиссии в оценке заявки.
type CommitteeAssignment struct {
	MemberID         string     `json:"memberId"`
	RequisitionID    string     `json:"requisitionId"`
	Financial        bool       `json:"financial"`
	Technical        bool       `json:"technical"`
	ScoresSubmitted  bool       `json:"scoresSubmitted"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	ExtendedDeadline *time.Time `json:"extendedDeadline,omitempty"`
}

// CommitteeRequest представляет структуру запроса на назначение комиссии.
type CommitteeRequest struct {
	Financial []string `json:"financial"`
	Technical []string `json:"technical"`
}

// SubmissionResult - итог отметки о выставленных оценках.
type SubmissionResult struct {
	ScoringComplete bool `json:"scoringComplete"`
	Transitioned    bool `json:"transitioned"`
}

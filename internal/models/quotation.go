package models

import "time"

type QuotationStatus string // Статус предложения поставщика

const (
	SubmittedQuotation QuotationStatus = "Submitted" // Предложение подано
	StandbyQuotation   QuotationStatus = "Standby"   // Резервный поставщик
	AwardedQuotation   QuotationStatus = "Awarded"   // Победитель
	RejectedQuotation  QuotationStatus = "Rejected"  // Отклонено или отказ от победы
)

// Quotation представляет модель предложения поставщика.
type Quotation struct {
	ID            string          `json:"id"`
	RequisitionID string          `json:"requisitionId"`
	VendorID      string          `json:"vendorId"`
	Amount        *string         `json:"amount,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Details       string          `json:"details,omitempty"`
	Status        QuotationStatus `json:"status"`
	Rank          *int            `json:"rank"`
	SubmittedAt   time.Time       `json:"submittedAt"`
	Masked        bool            `json:"masked,omitempty"`
}

// QuotationRequest представляет структуру запроса для подачи предложения.
type QuotationRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Details  string `json:"details"`
}

// MaskedCopy скрывает коммерческие данные до вскрытия.
func (q Quotation) MaskedCopy() Quotation {
	q.Amount = nil
	q.Currency = ""
	q.Details = ""
	q.Masked = true
	return q
}

// RankAssignment - ранг, присвоенный внешней системой оценки.
type RankAssignment struct {
	QuotationID string `json:"quotationId"`
	Rank        int    `json:"rank"`
}

// AwardOutcome - результат продвижения резервного поставщика.
type AwardOutcome string

const (
	OutcomePromoted  AwardOutcome = "Promoted"
	OutcomeExhausted AwardOutcome = "Exhausted"
)

// PromotionResult описывает итог promoteStandby.
type PromotionResult struct {
	Outcome             AwardOutcome `json:"outcome"`
	RejectedQuotationID string       `json:"rejectedQuotationId,omitempty"`
	PromotedQuotationID string       `json:"promotedQuotationId,omitempty"`
	PromotedVendorID    string       `json:"promotedVendorId,omitempty"`
}

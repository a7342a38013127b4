package models

import "time"

type AuditAction string // Код действия в журнале аудита

const (
	ActionCreateRequisition AuditAction = "CREATE_REQUISITION"
	ActionChangeStatus      AuditAction = "CHANGE_STATUS"
	ActionCloseQuotes       AuditAction = "CLOSE_QUOTES"
	ActionSubmitQuotation   AuditAction = "SUBMIT_QUOTATION"
	ActionGeneratePIN       AuditAction = "GENERATE_PIN"
	ActionVerifyPIN         AuditAction = "VERIFY_PIN"
	ActionUnmaskRFQ         AuditAction = "UNMASK_RFQ"
	ActionResetQuorum       AuditAction = "RESET_QUORUM"
	ActionUpdateSettings    AuditAction = "UPDATE_SETTINGS"
	ActionOpenBids          AuditAction = "OPEN_BIDS"
	ActionAssignCommittee   AuditAction = "ASSIGN_COMMITTEE"
	ActionSubmitScores      AuditAction = "SUBMIT_SCORES"
	ActionExtendDeadline    AuditAction = "EXTEND_DEADLINE"
	ActionScoringComplete   AuditAction = "SCORING_COMPLETE"
	ActionRankQuotations    AuditAction = "RANK_QUOTATIONS"
	ActionFinalizeAward     AuditAction = "FINALIZE_AWARD"
	ActionNotifyVendor      AuditAction = "NOTIFY_VENDOR"
	ActionPromoteStandby    AuditAction = "PROMOTE_STANDBY"
	ActionAwardExhausted    AuditAction = "AWARD_EXHAUSTED"
	ActionAcceptAward       AuditAction = "ACCEPT_AWARD"
	ActionDispute           AuditAction = "DISPUTE"
	ActionReopen            AuditAction = "REOPEN"
)

// AuditLogEntry - неизменяемая запись журнала аудита.
type AuditLogEntry struct {
	ID            string      `json:"id"`
	Actor         string      `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Action        AuditAction `json:"action"`
	TargetType    string      `json:"targetType"`
	TargetID      string      `json:"targetId"`
	RequisitionID string      `json:"requisitionId"`
	Detail        string      `json:"detail"`
	TxID          string      `json:"txId,omitempty"`
}

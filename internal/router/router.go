package router

import (
	"net/http"

	"github.com/senyabanana/procurement-service/internal/handlers"
)

// Handlers - набор обработчиков, из которых собирается маршрутизатор.
type Handlers struct {
	Requisition *handlers.RequisitionHandler
	Quorum      *handlers.QuorumHandler
	Committee   *handlers.CommitteeHandler
	Award       *handlers.AwardHandler
	Audit       *handlers.AuditHandler
	VerifyLimit *handlers.RateLimiter
	Metrics     http.Handler
}

func InitRoutes(h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", handlers.PingHandler)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	rq := h.Requisition
	mux.HandleFunc("POST /api/requisitions/new", rq.CreateRequisition)
	mux.HandleFunc("GET /api/requisitions/{requisitionId}", rq.GetRequisition)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/submit", rq.SubmitForApproval)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/approve", rq.Approve)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/sourcing", rq.StartSourcing)
	mux.HandleFunc("POST /api/requisitions/{requisitionId}/quotations/new", rq.SubmitQuotation)
	mux.HandleFunc("GET /api/requisitions/{requisitionId}/quotations", rq.ListQuotations)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/open_bids", rq.OpenBids)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/dispute", rq.Dispute)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/reopen", rq.Reopen)

	q := h.Quorum
	verify := q.VerifySecret
	if h.VerifyLimit != nil {
		verify = h.VerifyLimit.Limit(verify)
	}
	mux.HandleFunc("POST /api/requisitions/{requisitionId}/secrets/new", q.IssueSecret)
	mux.HandleFunc("POST /api/requisitions/{requisitionId}/secrets/verify", verify)
	mux.HandleFunc("GET /api/requisitions/{requisitionId}/quorum", q.GetQuorum)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/quorum/settings", q.UpdateSettings)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/quorum/reset", q.ResetQuorum)

	c := h.Committee
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/committee", c.AssignCommittee)
	mux.HandleFunc("GET /api/requisitions/{requisitionId}/committee", c.ListAssignments)
	mux.HandleFunc("GET /api/requisitions/{requisitionId}/committee/complete", c.ScoringComplete)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/committee/{memberId}/submit", c.SubmitScores)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/committee/{memberId}/deadline", c.ExtendDeadline)

	a := h.Award
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/ranks", a.RankQuotations)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/award", a.Finalize)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/award/notify", a.NotifyVendor)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/award/promote", a.PromoteStandby)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/award/accept", a.AcceptAward)
	mux.HandleFunc("PUT /api/requisitions/{requisitionId}/award/decline", a.DeclineAward)

	mux.HandleFunc("GET /api/requisitions/{requisitionId}/audit", h.Audit.ListByRequisition)
	mux.HandleFunc("GET /api/audit/{txId}", h.Audit.ListByTx)

	return mux
}

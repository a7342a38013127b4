package handlers

import (
	"net/http"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/services"
	"github.com/senyabanana/procurement-service/internal/utils"
)

// RequisitionHandler - структура для обработки HTTP-запросов по жизненному циклу заявки.
type RequisitionHandler struct {
	Base
	Service *services.RequisitionService
}

// NewRequisitionHandler создает новый экземпляр RequisitionHandler.
func NewRequisitionHandler(base Base, service *services.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{Base: base, Service: service}
}

// CreateRequisition обрабатывает запросы для создания заявки.
func (h *RequisitionHandler) CreateRequisition(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var reqReq models.RequisitionRequest
	if !h.decode(w, r, &reqReq) {
		return
	}
	req, err := h.Service.Create(ctx, reqReq, actor)
	h.respond(w, req, err, "failed to create requisition")
}

// GetRequisition обрабатывает запросы для получения заявки.
func (h *RequisitionHandler) GetRequisition(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, _, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	req, err := h.Service.Get(ctx, r.PathValue("requisitionId"))
	h.respond(w, req, err, "failed to retrieve requisition")
}

// SubmitForApproval обрабатывает запросы для отправки заявки на согласование.
func (h *RequisitionHandler) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	req, err := h.Service.SubmitForApproval(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, req, err, "failed to submit requisition for approval")
}

// Approve обрабатывает запросы для согласования заявки.
func (h *RequisitionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	req, err := h.Service.Approve(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, req, err, "failed to approve requisition")
}

// StartSourcing обрабатывает запросы для открытия приёма предложений.
func (h *RequisitionHandler) StartSourcing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	deadline, err := utils.ParseTime("quoteDeadline", r.URL.Query().Get("quoteDeadline"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "invalid quote deadline")
		return
	}
	req, err := h.Service.StartSourcing(ctx, r.PathValue("requisitionId"), deadline, actor)
	h.respond(w, req, err, "failed to start sourcing")
}

// SubmitQuotation обрабатывает запросы поставщиков на подачу предложения.
func (h *RequisitionHandler) SubmitQuotation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var qReq models.QuotationRequest
	if !h.decode(w, r, &qReq) {
		return
	}
	quotation, err := h.Service.SubmitQuotation(ctx, r.PathValue("requisitionId"), qReq, actor)
	h.respond(w, quotation, err, "failed to submit quotation")
}

// ListQuotations обрабатывает запросы для получения предложений по заявке.
func (h *RequisitionHandler) ListQuotations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	quotations, err := h.Service.ListQuotations(ctx, r.PathValue("requisitionId"), actor)
	if err == nil && len(quotations) == 0 {
		utils.SendErrorResponse(w, http.StatusNotFound, models.KindNotFound, "no quotations found for the specified requisition")
		return
	}
	h.respond(w, quotations, err, "failed to retrieve quotations")
}

// OpenBids обрабатывает запросы на вскрытие финансовых предложений.
func (h *RequisitionHandler) OpenBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	req, err := h.Service.OpenBids(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, req, err, "failed to open bids")
}

// Dispute обрабатывает запросы на перевод заявки в спор.
func (h *RequisitionHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindInvalid, "missing required query parameter: reason")
		return
	}
	req, err := h.Service.Dispute(ctx, r.PathValue("requisitionId"), reason, actor)
	h.respond(w, req, err, "failed to dispute requisition")
}

// Reopen обрабатывает запросы на возврат заявки из спора.
func (h *RequisitionHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	req, err := h.Service.ReopenDispute(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, req, err, "failed to reopen requisition")
}

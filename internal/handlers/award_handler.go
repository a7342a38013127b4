package handlers

import (
	"net/http"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/services"
	"github.com/senyabanana/procurement-service/internal/utils"
)

// AwardHandler - структура для обработки HTTP-запросов по присуждению контракта.
type AwardHandler struct {
	Base
	Service *services.AwardService
}

// NewAwardHandler создает новый экземпляр AwardHandler.
func NewAwardHandler(base Base, service *services.AwardService) *AwardHandler {
	return &AwardHandler{Base: base, Service: service}
}

// RankQuotations обрабатывает запросы на ранжирование предложений.
func (h *AwardHandler) RankQuotations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var ranks []models.RankAssignment
	if !h.decode(w, r, &ranks) {
		return
	}
	quotations, err := h.Service.RankQuotations(ctx, r.PathValue("requisitionId"), ranks, actor)
	h.respond(w, quotations, err, "failed to rank quotations")
}

// Finalize обрабатывает запросы на присуждение контракта лучшему предложению.
func (h *AwardHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	quotation, err := h.Service.Finalize(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, quotation, err, "failed to finalize award")
}

// NotifyVendor обрабатывает запросы на уведомление победителя со сроком ответа.
func (h *AwardHandler) NotifyVendor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	deadline, err := utils.ParseTime("deadline", r.URL.Query().Get("deadline"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "invalid award deadline")
		return
	}
	req, err := h.Service.NotifyVendor(ctx, r.PathValue("requisitionId"), deadline, actor)
	h.respond(w, req, err, "failed to notify vendor")
}

// PromoteStandby обрабатывает запросы на переход к следующему резервному поставщику.
func (h *AwardHandler) PromoteStandby(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	result, err := h.Service.PromoteStandby(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, result, err, "failed to promote standby")
}

// AcceptAward обрабатывает согласие победителя.
func (h *AwardHandler) AcceptAward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	req, err := h.Service.AcceptAward(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, req, err, "failed to accept award")
}

// DeclineAward обрабатывает отказ победителя.
func (h *AwardHandler) DeclineAward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	result, err := h.Service.DeclineAward(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, result, err, "failed to decline award")
}

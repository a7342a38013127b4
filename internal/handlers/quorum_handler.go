package handlers

import (
	"net/http"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/services"
)

// QuorumHandler - структура для обработки HTTP-запросов по PIN директоров и кворуму.
type QuorumHandler struct {
	Base
	Service *services.QuorumService
}

// NewQuorumHandler создает новый экземпляр QuorumHandler.
func NewQuorumHandler(base Base, service *services.QuorumService) *QuorumHandler {
	return &QuorumHandler{Base: base, Service: service}
}

// IssueSecret обрабатывает запросы на выпуск PIN для роли директора.
func (h *QuorumHandler) IssueSecret(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var issueReq models.IssueRequest
	if !h.decode(w, r, &issueReq) {
		return
	}
	issued, err := h.Service.Issue(ctx, r.PathValue("requisitionId"), issueReq, actor)
	h.respond(w, issued, err, "failed to issue secret")
}

// VerifySecret обрабатывает запросы на проверку PIN.
func (h *QuorumHandler) VerifySecret(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var verifyReq models.VerifyRequest
	if !h.decode(w, r, &verifyReq) {
		return
	}
	result, err := h.Service.Verify(ctx, r.PathValue("requisitionId"), verifyReq, actor)
	h.respond(w, result, err, "failed to verify secret")
}

// GetQuorum обрабатывает запросы на получение текущего состояния кворума.
func (h *QuorumHandler) GetQuorum(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, _, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	status, err := h.Service.Tally(ctx, r.PathValue("requisitionId"))
	h.respond(w, status, err, "failed to compute quorum")
}

// UpdateSettings обрабатывает запросы на изменение порога и обязательных ролей.
func (h *QuorumHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var settings models.QuorumSettings
	if !h.decode(w, r, &settings) {
		return
	}
	req, err := h.Service.UpdateSettings(ctx, r.PathValue("requisitionId"), settings, actor)
	h.respond(w, req, err, "failed to update quorum settings")
}

// ResetQuorum обрабатывает запросы на сброс кворума с перевыпуском PIN.
func (h *QuorumHandler) ResetQuorum(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	issued, err := h.Service.ResetQuorum(ctx, r.PathValue("requisitionId"), actor)
	h.respond(w, issued, err, "failed to reset quorum")
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/senyabanana/procurement-service/internal/services"
)

// AuditHandler - структура для обработки HTTP-запросов к журналу аудита.
type AuditHandler struct {
	Base
	Service *services.AuditService
}

// NewAuditHandler создает новый экземпляр AuditHandler.
func NewAuditHandler(base Base, service *services.AuditService) *AuditHandler {
	return &AuditHandler{Base: base, Service: service}
}

// ListByRequisition обрабатывает запросы на журнал заявки. Параметр action можно повторять
// или передавать через запятую.
func (h *AuditHandler) ListByRequisition(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	query := r.URL.Query()
	var actions []string
	for _, v := range query["action"] {
		actions = append(actions, strings.Split(v, ",")...)
	}
	entries, err := h.Service.ListByRequisition(ctx, r.PathValue("requisitionId"), actions, query.Get("limit"), query.Get("offset"), actor)
	h.respond(w, entries, err, "failed to retrieve audit log")
}

// ListByTx обрабатывает запросы на записи одной операции.
func (h *AuditHandler) ListByTx(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	entries, err := h.Service.ListByTx(ctx, r.PathValue("txId"), actor)
	h.respond(w, entries, err, "failed to retrieve audit log")
}

package handlers

import (
	"net/http"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/services"
	"github.com/senyabanana/procurement-service/internal/utils"
)

// CommitteeHandler - структура для обработки HTTP-запросов по оценочной комиссии.
type CommitteeHandler struct {
	Base
	Service *services.CommitteeService
}

// NewCommitteeHandler создает новый экземпляр CommitteeHandler.
func NewCommitteeHandler(base Base, service *services.CommitteeService) *CommitteeHandler {
	return &CommitteeHandler{Base: base, Service: service}
}

// AssignCommittee обрабатывает запросы на назначение состава комиссии.
func (h *CommitteeHandler) AssignCommittee(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var cReq models.CommitteeRequest
	if !h.decode(w, r, &cReq) {
		return
	}
	req, err := h.Service.AssignCommittee(ctx, r.PathValue("requisitionId"), cReq, actor)
	h.respond(w, req, err, "failed to assign committee")
}

// ListAssignments обрабатывает запросы на получение назначений комиссии.
func (h *CommitteeHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, _, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	assignments, err := h.Service.ListAssignments(ctx, r.PathValue("requisitionId"))
	h.respond(w, assignments, err, "failed to retrieve committee")
}

// SubmitScores обрабатывает отметку о выставленных оценках. Отметить можно только себя,
// если пользователь не администратор.
func (h *CommitteeHandler) SubmitScores(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	memberId := r.PathValue("memberId")
	if actor.ID != memberId && !actor.IsAdmin() {
		utils.SendErrorResponse(w, http.StatusForbidden, models.KindForbidden, "user can only submit own scores")
		return
	}
	result, err := h.Service.RecordSubmission(ctx, r.PathValue("requisitionId"), memberId)
	h.respond(w, result, err, "failed to record submission")
}

// ScoringComplete обрабатывает запросы о завершённости оценки.
func (h *CommitteeHandler) ScoringComplete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, _, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	complete, err := h.Service.IsScoringComplete(ctx, r.PathValue("requisitionId"))
	h.respond(w, map[string]bool{"scoringComplete": complete}, err, "failed to check scoring")
}

// ExtendDeadline обрабатывает запросы на продление срока оценки члену комиссии.
func (h *CommitteeHandler) ExtendDeadline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	deadline, err := utils.ParseTime("deadline", r.URL.Query().Get("deadline"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "invalid deadline")
		return
	}
	err = h.Service.ExtendMemberDeadline(ctx, r.PathValue("requisitionId"), r.PathValue("memberId"), deadline, actor)
	h.respond(w, map[string]string{"memberId": r.PathValue("memberId"), "deadline": deadline.UTC().Format(time.RFC3339)}, err, "failed to extend deadline")
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/procurement-service/internal/metrics"
	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/notify"
	"github.com/senyabanana/procurement-service/internal/repository"
)

// memState - содержимое хранилища. Каждая транзакция работает с копией.
type memState struct {
	requisitions map[string]models.Requisition
	secrets      []models.Secret
	quotations   []models.Quotation
	assignments  map[string]models.CommitteeAssignment
}

// copyRequisition сохраняет различие между nil и пустым массивом, как колонки TEXT[].
func copyRequisition(r models.Requisition) models.Requisition {
	if r.OpeningRoles != nil {
		r.OpeningRoles = append([]models.Role{}, r.OpeningRoles...)
	}
	if r.FinancialCommittee != nil {
		r.FinancialCommittee = append([]string{}, r.FinancialCommittee...)
	}
	if r.TechnicalCommittee != nil {
		r.TechnicalCommittee = append([]string{}, r.TechnicalCommittee...)
	}
	return r
}

// checkArrays повторяет ограничения NOT NULL на колонках-массивах заявки.
func checkArrays(r *models.Requisition) error {
	switch {
	case r.OpeningRoles == nil:
		return errors.New(`null value in column "opening_roles" violates not-null constraint`)
	case r.FinancialCommittee == nil:
		return errors.New(`null value in column "financial_committee" violates not-null constraint`)
	case r.TechnicalCommittee == nil:
		return errors.New(`null value in column "technical_committee" violates not-null constraint`)
	}
	return nil
}

func (s *memState) clone() *memState {
	c := &memState{
		requisitions: make(map[string]models.Requisition, len(s.requisitions)),
		secrets:      append([]models.Secret(nil), s.secrets...),
		quotations:   append([]models.Quotation(nil), s.quotations...),
		assignments:  make(map[string]models.CommitteeAssignment, len(s.assignments)),
	}
	for k, v := range s.requisitions {
		c.requisitions[k] = copyRequisition(v)
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	return c
}

// memStore сериализует транзакции одним мьютексом, что соответствует блокировке строки заявки.
type memStore struct {
	mu    sync.Mutex
	state *memState
	txs   int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		requisitions: map[string]models.Requisition{},
		assignments:  map[string]models.CommitteeAssignment{},
	}}
}

func (s *memStore) InTx(ctx context.Context, fn func(repo repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txs++
	work := s.state.clone()
	if err := fn(&memRepo{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) requisition(id string) models.Requisition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRequisition(s.state.requisitions[id])
}

func (s *memStore) secrets() []models.Secret {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Secret(nil), s.state.secrets...)
}

func (s *memStore) quotationsOf(requisitionId string) []models.Quotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Quotation
	for _, q := range s.state.quotations {
		if q.RequisitionID == requisitionId {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// put записывает заявку напрямую, минуя жизненный цикл.
func (s *memStore) put(req models.Requisition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.requisitions[req.ID] = copyRequisition(req)
}

func (s *memStore) putQuotation(q models.Quotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.quotations = append(s.state.quotations, q)
}

type memRepo struct {
	st *memState
}

var _ repository.Repository = (*memRepo)(nil)

func (r *memRepo) CreateRequisition(_ context.Context, req *models.Requisition) error {
	if _, ok := r.st.requisitions[req.ID]; ok {
		return fmt.Errorf("duplicate requisition %s", req.ID)
	}
	if err := checkArrays(req); err != nil {
		return err
	}
	r.st.requisitions[req.ID] = copyRequisition(*req)
	return nil
}

func (r *memRepo) GetRequisition(_ context.Context, requisitionId string) (*models.Requisition, error) {
	req, ok := r.st.requisitions[requisitionId]
	if !ok {
		return nil, models.NewErrorResponse(models.KindNotFound, "requisition not found")
	}
	c := copyRequisition(req)
	return &c, nil
}

func (r *memRepo) LockRequisition(ctx context.Context, requisitionId string) (*models.Requisition, error) {
	return r.GetRequisition(ctx, requisitionId)
}

func (r *memRepo) UpdateRequisition(_ context.Context, req *models.Requisition) error {
	if _, ok := r.st.requisitions[req.ID]; !ok {
		return models.NewErrorResponse(models.KindNotFound, "requisition not found")
	}
	if err := checkArrays(req); err != nil {
		return err
	}
	r.st.requisitions[req.ID] = copyRequisition(*req)
	return nil
}

func (r *memRepo) TransitionRequisition(_ context.Context, requisitionId string, from, to models.RequisitionStatus) (bool, error) {
	req, ok := r.st.requisitions[requisitionId]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	r.st.requisitions[requisitionId] = req
	return true, nil
}

func (r *memRepo) listBy(limit int, match func(models.Requisition) (time.Time, bool)) []string {
	type due struct {
		id string
		at time.Time
	}
	var found []due
	for id, req := range r.st.requisitions {
		if at, ok := match(req); ok {
			found = append(found, due{id, at})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })
	var ids []string
	for i, d := range found {
		if i >= limit {
			break
		}
		ids = append(ids, d.id)
	}
	return ids
}

func (r *memRepo) ListDueQuoteWindows(_ context.Context, now time.Time, limit int) ([]string, error) {
	return r.listBy(limit, func(req models.Requisition) (time.Time, bool) {
		if req.Status != models.AcceptingQuotesRequisition || req.QuoteDeadline == nil {
			return time.Time{}, false
		}
		return *req.QuoteDeadline, req.QuoteDeadline.Before(now)
	}), nil
}

func (r *memRepo) ListExpiredAwards(_ context.Context, now time.Time, limit int) ([]string, error) {
	return r.listBy(limit, func(req models.Requisition) (time.Time, bool) {
		if req.Status != models.AwardedRequisition || req.AwardExhausted || req.AwardDeadline == nil {
			return time.Time{}, false
		}
		return *req.AwardDeadline, req.AwardDeadline.Before(now)
	}), nil
}

func recipientKey(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (r *memRepo) InsertSecret(_ context.Context, secret *models.Secret) error {
	for _, s := range r.st.secrets {
		if s.RequisitionID == secret.RequisitionID && s.RoleName == secret.RoleName && s.Round == secret.Round &&
			recipientKey(s.RecipientID) == recipientKey(secret.RecipientID) && !s.Used && s.InvalidatedAt == nil {
			return errors.New("unique violation: outstanding secret already exists")
		}
	}
	r.st.secrets = append(r.st.secrets, *secret)
	return nil
}

func (r *memRepo) InvalidateOutstandingSecrets(_ context.Context, filter repository.SecretFilter, at time.Time) (int64, error) {
	var n int64
	for i := range r.st.secrets {
		s := &r.st.secrets[i]
		if s.RequisitionID != filter.RequisitionID || s.Used || s.InvalidatedAt != nil {
			continue
		}
		if filter.Role != nil && s.RoleName != *filter.Role {
			continue
		}
		if !filter.AnyRecipient && recipientKey(s.RecipientID) != recipientKey(filter.RecipientID) {
			continue
		}
		t := at
		s.InvalidatedAt = &t
		n++
	}
	return n, nil
}

func (r *memRepo) FindActiveSecret(_ context.Context, filter repository.SecretFilter) (*models.Secret, error) {
	if filter.Role == nil {
		return nil, models.NewErrorResponse(models.KindInvalid, "role is required")
	}
	var best *models.Secret
	for i := range r.st.secrets {
		s := r.st.secrets[i]
		if s.RequisitionID != filter.RequisitionID || s.RoleName != *filter.Role || s.Round != filter.Round {
			continue
		}
		if s.Used || s.InvalidatedAt != nil {
			continue
		}
		if !filter.AnyRecipient && s.RecipientID != nil && recipientKey(filter.RecipientID) != *s.RecipientID {
			continue
		}
		if best == nil || s.GeneratedAt.After(best.GeneratedAt) || (s.GeneratedAt.Equal(best.GeneratedAt) && s.ID > best.ID) {
			c := s
			best = &c
		}
	}
	if best == nil {
		return nil, models.NewErrorResponse(models.KindNotFound, "secret not found")
	}
	return best, nil
}

func (r *memRepo) HasVerified(_ context.Context, requisitionId string, role models.Role, round int, actorId string) (bool, error) {
	for _, s := range r.st.secrets {
		if s.RequisitionID == requisitionId && s.RoleName == role && s.Round == round && s.Used &&
			s.UsedByID != nil && *s.UsedByID == actorId {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) MarkSecretUsed(_ context.Context, secretId, actorId string, at time.Time) (bool, error) {
	for i := range r.st.secrets {
		s := &r.st.secrets[i]
		if s.ID != secretId || s.Used || s.InvalidatedAt != nil {
			continue
		}
		by, t := actorId, at
		s.Used, s.UsedByID, s.UsedAt = true, &by, &t
		return true, nil
	}
	return false, nil
}

func (r *memRepo) VerifiedRoles(_ context.Context, requisitionId string, round int) ([]models.Role, error) {
	seen := map[models.Role]bool{}
	var roles []models.Role
	for _, s := range r.st.secrets {
		if s.RequisitionID == requisitionId && s.Round == round && s.Used && !seen[s.RoleName] {
			seen[s.RoleName] = true
			roles = append(roles, s.RoleName)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, nil
}

func (r *memRepo) CreateQuotation(_ context.Context, quotation *models.Quotation) error {
	for _, q := range r.st.quotations {
		if q.RequisitionID == quotation.RequisitionID && q.VendorID == quotation.VendorID {
			return models.NewErrorResponse(models.KindInvalidState, "vendor has already submitted a quotation for this requisition")
		}
	}
	r.st.quotations = append(r.st.quotations, *quotation)
	return nil
}

func (r *memRepo) ListQuotations(_ context.Context, requisitionId string) ([]models.Quotation, error) {
	var out []models.Quotation
	for _, q := range r.st.quotations {
		if q.RequisitionID == requisitionId {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Rank != nil && b.Rank != nil && *a.Rank != *b.Rank:
			return *a.Rank < *b.Rank
		case a.Rank != nil && b.Rank == nil:
			return true
		case a.Rank == nil && b.Rank != nil:
			return false
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *memRepo) UpdateQuotationStatus(_ context.Context, quotationId string, status models.QuotationStatus) error {
	idx := -1
	for i, q := range r.st.quotations {
		if q.ID == quotationId {
			idx = i
		}
	}
	if idx < 0 {
		return models.NewErrorResponse(models.KindNotFound, "quotation not found")
	}
	if status == models.AwardedQuotation {
		for _, q := range r.st.quotations {
			if q.RequisitionID == r.st.quotations[idx].RequisitionID && q.ID != quotationId && q.Status == models.AwardedQuotation {
				return errors.New("unique violation: requisition already has an awarded quotation")
			}
		}
	}
	r.st.quotations[idx].Status = status
	return nil
}

func (r *memRepo) UpdateQuotationRank(_ context.Context, quotationId string, rank *int) error {
	for i := range r.st.quotations {
		if r.st.quotations[i].ID == quotationId {
			r.st.quotations[i].Rank = rank
			return nil
		}
	}
	return models.NewErrorResponse(models.KindNotFound, "quotation not found")
}

func assignmentKey(requisitionId, memberId string) string {
	return requisitionId + "|" + memberId
}

func (r *memRepo) UpsertAssignment(_ context.Context, a models.CommitteeAssignment) error {
	key := assignmentKey(a.RequisitionID, a.MemberID)
	existing, ok := r.st.assignments[key]
	if ok {
		existing.Financial = existing.Financial || a.Financial
		existing.Technical = existing.Technical || a.Technical
		r.st.assignments[key] = existing
		return nil
	}
	r.st.assignments[key] = a
	return nil
}

func (r *memRepo) GetAssignment(_ context.Context, requisitionId, memberId string) (*models.CommitteeAssignment, error) {
	a, ok := r.st.assignments[assignmentKey(requisitionId, memberId)]
	if !ok {
		return nil, models.NewErrorResponse(models.KindNotFound, "committee assignment not found")
	}
	return &a, nil
}

func (r *memRepo) ListAssignments(_ context.Context, requisitionId string) ([]models.CommitteeAssignment, error) {
	var out []models.CommitteeAssignment
	for _, a := range r.st.assignments {
		if a.RequisitionID == requisitionId {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (r *memRepo) MarkScoresSubmitted(_ context.Context, requisitionId, memberId string, at time.Time) (bool, error) {
	key := assignmentKey(requisitionId, memberId)
	a, ok := r.st.assignments[key]
	if ok && a.ScoresSubmitted {
		return false, nil
	}
	if !ok {
		a = models.CommitteeAssignment{MemberID: memberId, RequisitionID: requisitionId}
	}
	t := at
	a.ScoresSubmitted, a.SubmittedAt = true, &t
	r.st.assignments[key] = a
	return true, nil
}

func (r *memRepo) SetExtendedDeadline(_ context.Context, requisitionId, memberId string, deadline time.Time) error {
	key := assignmentKey(requisitionId, memberId)
	a, ok := r.st.assignments[key]
	if !ok {
		return models.NewErrorResponse(models.KindNotFound, "committee assignment not found")
	}
	d := deadline
	a.ExtendedDeadline = &d
	r.st.assignments[key] = a
	return nil
}

// memAudit собирает записи журнала. При fail != nil запись отклоняется.
type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLogEntry
	fail    error
}

func (a *memAudit) Append(_ context.Context, entries ...models.AuditLogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.entries = append(a.entries, entries...)
	return nil
}

func (a *memAudit) actions(requisitionId string) []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditAction
	for _, e := range a.entries {
		if e.RequisitionID == requisitionId {
			out = append(out, e.Action)
		}
	}
	return out
}

func (a *memAudit) count(requisitionId string, action models.AuditAction) int {
	n := 0
	for _, got := range a.actions(requisitionId) {
		if got == action {
			n++
		}
	}
	return n
}

// memNotifier запоминает отправленные уведомления.
type memNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *memNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *memNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}

// testClock - управляемое время для проверки сроков.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store        *memStore
	audit        *memAudit
	notifier     *memNotifier
	dispatcher   *notify.Dispatcher
	clock        *testClock
	deps         *Deps
	requisitions *RequisitionService
	quorum       *QuorumService
	committee    *CommitteeService
	awards       *AwardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:    newMemStore(),
		audit:    &memAudit{},
		notifier: &memNotifier{},
		clock:    &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.dispatcher = notify.NewDispatcher(f.notifier, logger, time.Second)
	f.deps = &Deps{
		Store:    f.store,
		Audit:    f.audit,
		Notifier: f.dispatcher,
		Metrics:  metrics.New(),
		Logger:   logger,
		Now:      f.clock.Now,
	}
	f.requisitions = NewRequisitionService(f.deps)
	f.quorum = NewQuorumService(f.deps, QuorumConfig{SecretTTL: 30 * time.Minute, PINLength: 6, BcryptCost: 4})
	f.committee = NewCommitteeService(f.deps)
	f.awards = NewAwardService(f.deps)
	return f
}

var (
	officer   = models.NewActor("officer-1", "Olga", []models.Role{models.RoleProcurementOfficer})
	approver  = models.NewActor("officer-2", "Pavel", []models.Role{models.RoleProcurementOfficer})
	admin     = models.NewActor("admin-1", "Anna", []models.Role{models.RoleAdmin})
	finance   = models.NewActor("fd-1", "Fedor", []models.Role{models.RoleFinanceDirector})
	technical = models.NewActor("td-1", "Tanya", []models.Role{models.RoleTechnicalDirector})
	procDir   = models.NewActor("pd-1", "Petr", []models.Role{models.RoleProcurementDirector})
)

func vendor(id string) models.Actor {
	return models.NewActor(id, id, []models.Role{models.RoleVendor})
}

func directorFor(role models.Role) models.Actor {
	switch role {
	case models.RoleFinanceDirector:
		return finance
	case models.RoleTechnicalDirector:
		return technical
	default:
		return procDir
	}
}

// seedRequisition кладёт заявку в нужном статусе напрямую в хранилище.
func (f *fixture) seedRequisition(id string, status models.RequisitionStatus, threshold int) models.Requisition {
	now := f.clock.Now()
	req := models.Requisition{
		ID:                 id,
		Title:              "Laptops for " + id,
		Status:             status,
		Masked:             true,
		UnsealThreshold:    threshold,
		OpeningRoles:       append([]models.Role{}, models.DirectorRoles...),
		QuorumRound:        1,
		FinancialCommittee: []string{},
		TechnicalCommittee: []string{},
		CreatedBy:          officer.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	f.store.put(req)
	return req
}

func rank(n int) *int { return &n }

func amount(s string) *string { return &s }

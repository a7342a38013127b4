package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requisitionColumnNames = []string{
	"id", "title", "description", "status", "previous_status", "quote_deadline", "scoring_deadline",
	"masked", "unseal_threshold", "opening_roles", "quorum_round", "financial_committee", "technical_committee",
	"award_deadline", "award_exhausted", "created_by", "created_at", "updated_at",
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return &PostgresRepository{q: mock}, mock
}

func TestCreateRequisition_BindsEmptyArraysForNilSlices(t *testing.T) {
	repo, mock := newMockRepo(t)
	req := &models.Requisition{
		ID:              "req-1",
		Title:           "Servers",
		Status:          models.DraftRequisition,
		Masked:          true,
		UnsealThreshold: 3,
		OpeningRoles:    models.DirectorRoles,
		QuorumRound:     1,
		CreatedBy:       "officer-1",
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requisition (")).
		WithArgs(
			"req-1", "Servers", "", models.DraftRequisition, pgxmock.AnyArg(), pgxmock.AnyArg(),
			true, 3, pq.Array([]string{"FinanceDirector", "TechnicalDirector", "ProcurementDirector"}), 1,
			pq.Array([]string{}), pq.Array([]string{}),
			"officer-1", testNow, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateRequisition(context.Background(), req))
}

func TestUpdateRequisition(t *testing.T) {
	repo, mock := newMockRepo(t)
	req := &models.Requisition{
		ID:                 "req-1",
		Status:             models.DisputedRequisition,
		PreviousStatus:     models.SealedRequisition,
		Masked:             true,
		UnsealThreshold:    2,
		QuorumRound:        1,
		FinancialCommittee: []string{"m-1"},
		UpdatedAt:          testNow,
	}
	previous := "Sealed"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requisition SET status = $2, previous_status = $3")).
		WithArgs(
			"req-1", models.DisputedRequisition, &previous, pgxmock.AnyArg(), pgxmock.AnyArg(),
			true, 2, pq.Array([]string{}), 1, pq.Array([]string{"m-1"}), pq.Array([]string{}),
			pgxmock.AnyArg(), false, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.UpdateRequisition(context.Background(), req))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requisition SET status")).
		WithArgs(
			"req-1", models.DisputedRequisition, &previous, pgxmock.AnyArg(), pgxmock.AnyArg(),
			true, 2, pq.Array([]string{}), 1, pq.Array([]string{"m-1"}), pq.Array([]string{}),
			pgxmock.AnyArg(), false, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := repo.UpdateRequisition(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLockRequisition(t *testing.T) {
	repo, mock := newMockRepo(t)
	deadline := testNow.Add(time.Hour)
	previous := string(models.ReadyForOpeningRequisition)

	rows := pgxmock.NewRows(requisitionColumnNames).AddRow(
		"req-1", "Servers", "racks", models.DisputedRequisition, &previous, &deadline, (*time.Time)(nil),
		true, 2, []string{"FinanceDirector", "TechnicalDirector"}, 3, []string{"m-1"}, []string{},
		(*time.Time)(nil), false, "officer-1", testNow, testNow)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requisition WHERE id = $1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(rows)

	req, err := repo.LockRequisition(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.DisputedRequisition, req.Status)
	assert.Equal(t, models.ReadyForOpeningRequisition, req.PreviousStatus)
	assert.Equal(t, []models.Role{models.RoleFinanceDirector, models.RoleTechnicalDirector}, req.OpeningRoles)
	assert.Equal(t, 3, req.QuorumRound)
	assert.Equal(t, []string{"m-1"}, req.FinancialCommittee)
	require.NotNil(t, req.QuoteDeadline)
	assert.True(t, deadline.Equal(*req.QuoteDeadline))
	assert.Nil(t, req.AwardDeadline)
}

func TestGetRequisition_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requisition WHERE id = $1")).
		WithArgs("req-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetRequisition(context.Background(), "req-404")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTransitionRequisition_OnlyFromExpectedStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	query := regexp.QuoteMeta("UPDATE requisition SET status = $3, updated_at = now() WHERE id = $1 AND status = $2")

	mock.ExpectExec(query).
		WithArgs("req-1", models.ScoringInProgressRequisition, models.ScoringCompleteRequisition).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(query).
		WithArgs("req-1", models.ScoringInProgressRequisition, models.ScoringCompleteRequisition).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.TransitionRequisition(context.Background(), "req-1", models.ScoringInProgressRequisition, models.ScoringCompleteRequisition)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionRequisition(context.Background(), "req-1", models.ScoringInProgressRequisition, models.ScoringCompleteRequisition)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListDueQuoteWindowsAndExpiredAwards(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("quote_deadline < $2")).
		WithArgs(models.AcceptingQuotesRequisition, testNow, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("req-1").AddRow("req-2"))
	mock.ExpectQuery(regexp.QuoteMeta("NOT award_exhausted AND award_deadline IS NOT NULL")).
		WithArgs(models.AwardedRequisition, testNow, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	ids, err := repo.ListDueQuoteWindows(context.Background(), testNow, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1", "req-2"}, ids)

	ids, err = repo.ListExpiredAwards(context.Background(), testNow, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

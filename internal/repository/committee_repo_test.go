package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assignmentColumnNames = []string{
	"member_id", "requisition_id", "financial", "technical", "scores_submitted", "submitted_at", "extended_deadline",
}

func TestUpsertAssignment_MergesCommitteeFlags(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("SET financial = committee_assignment.financial OR EXCLUDED.financial")).
		WithArgs("m-1", "req-1", false, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.UpsertAssignment(context.Background(), models.CommitteeAssignment{
		MemberID:      "m-1",
		RequisitionID: "req-1",
		Technical:     true,
	}))
}

func TestMarkScoresSubmitted_FirstCallOnly(t *testing.T) {
	repo, mock := newMockRepo(t)
	query := regexp.QuoteMeta("WHERE committee_assignment.scores_submitted = false")

	mock.ExpectExec(query).
		WithArgs("m-1", "req-1", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(query).
		WithArgs("m-1", "req-1", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	first, err := repo.MarkScoresSubmitted(context.Background(), "req-1", "m-1", testNow)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.MarkScoresSubmitted(context.Background(), "req-1", "m-1", testNow)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestGetAndListAssignments(t *testing.T) {
	repo, mock := newMockRepo(t)
	submitted := testNow.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM committee_assignment WHERE requisition_id = $1 AND member_id = $2")).
		WithArgs("req-1", "m-9").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM committee_assignment WHERE requisition_id = $1 ORDER BY member_id")).
		WithArgs("req-1").
		WillReturnRows(pgxmock.NewRows(assignmentColumnNames).
			AddRow("m-1", "req-1", true, false, true, &submitted, (*time.Time)(nil)).
			AddRow("m-2", "req-1", true, true, false, (*time.Time)(nil), (*time.Time)(nil)))

	_, err := repo.GetAssignment(context.Background(), "req-1", "m-9")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assignments, err := repo.ListAssignments(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.True(t, assignments[0].ScoresSubmitted)
	require.NotNil(t, assignments[0].SubmittedAt)
	assert.True(t, assignments[1].Financial)
	assert.True(t, assignments[1].Technical)
}

func TestSetExtendedDeadline(t *testing.T) {
	repo, mock := newMockRepo(t)
	deadline := testNow.Add(48 * time.Hour)
	query := regexp.QuoteMeta("UPDATE committee_assignment SET extended_deadline = $3")

	mock.ExpectExec(query).
		WithArgs("req-1", "m-1", deadline).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(query).
		WithArgs("req-1", "m-404", deadline).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SetExtendedDeadline(context.Background(), "req-1", "m-1", deadline))
	assert.ErrorIs(t, repo.SetExtendedDeadline(context.Background(), "req-1", "m-404", deadline), models.ErrNotFound)
}

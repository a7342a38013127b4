package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateQuotation(t *testing.T) {
	repo, mock := newMockRepo(t)
	amount := "1200.50"
	q := &models.Quotation{
		ID:            "q-1",
		RequisitionID: "req-1",
		VendorID:      "v-1",
		Amount:        &amount,
		Currency:      "USD",
		Status:        models.SubmittedQuotation,
		SubmittedAt:   testNow,
	}
	query := regexp.QuoteMeta("VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)")

	mock.ExpectExec(query).
		WithArgs("q-1", "req-1", "v-1", &amount, "USD", "", models.SubmittedQuotation, (*int)(nil), testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.CreateQuotation(context.Background(), q))

	mock.ExpectExec(query).
		WithArgs("q-1", "req-1", "v-1", &amount, "USD", "", models.SubmittedQuotation, (*int)(nil), testNow).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	err := repo.CreateQuotation(context.Background(), q)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestListQuotations_RankedFirst(t *testing.T) {
	repo, mock := newMockRepo(t)
	first, second := 1, 2
	a, b := "100.00", "90.00"

	rows := pgxmock.NewRows([]string{"id", "requisition_id", "vendor_id", "amount", "currency", "details", "status", "rank", "submitted_at"}).
		AddRow("q-2", "req-1", "v-2", &b, "USD", "", models.AwardedQuotation, &first, testNow).
		AddRow("q-1", "req-1", "v-1", &a, "USD", "", models.StandbyQuotation, &second, testNow).
		AddRow("q-3", "req-1", "v-3", &a, "USD", "", models.SubmittedQuotation, (*int)(nil), testNow)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY rank ASC NULLS LAST, id ASC")).
		WithArgs("req-1").
		WillReturnRows(rows)

	quotations, err := repo.ListQuotations(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, quotations, 3)
	assert.Equal(t, "q-2", quotations[0].ID)
	assert.Equal(t, models.AwardedQuotation, quotations[0].Status)
	assert.Equal(t, 2, *quotations[1].Rank)
	assert.Nil(t, quotations[2].Rank)
}

func TestUpdateQuotation(t *testing.T) {
	repo, mock := newMockRepo(t)
	rank := 1

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quotation SET status = $1 WHERE id = $2")).
		WithArgs(models.RejectedQuotation, "q-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE quotation SET status = $1 WHERE id = $2")).
		WithArgs(models.AwardedQuotation, "q-404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE quotation SET rank = $1 WHERE id = $2")).
		WithArgs(&rank, "q-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateQuotationStatus(context.Background(), "q-1", models.RejectedQuotation))
	assert.ErrorIs(t, repo.UpdateQuotationStatus(context.Background(), "q-404", models.AwardedQuotation), models.ErrNotFound)
	require.NoError(t, repo.UpdateQuotationRank(context.Background(), "q-1", &rank))
}

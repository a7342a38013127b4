package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to RequisitionStatus
		want     bool
	}{
		{DraftRequisition, PendingApprovalRequisition, true},
		{PendingApprovalRequisition, DraftRequisition, true},
		{DraftRequisition, ApprovedRequisition, false},
		{ReadyForOpeningRequisition, SealedRequisition, true},
		{SealedRequisition, ScoringInProgressRequisition, false},
		{SealedRequisition, UnsealedRequisition, true},
		{UnsealedRequisition, SealedRequisition, false},
		{AwardedRequisition, ClosedRequisition, true},
		{SealedRequisition, DisputedRequisition, true},
		{ClosedRequisition, DisputedRequisition, false},
		{DisputedRequisition, DisputedRequisition, false},
		{RequisitionStatus("Unknown"), DisputedRequisition, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSealState(t *testing.T) {
	assert.Equal(t, Sealed, SealStateOf(true, 0))
	assert.Equal(t, Unsealing, SealStateOf(true, 2))
	assert.Equal(t, Unsealed, SealStateOf(false, 0))
	assert.Equal(t, Unsealed, SealStateOf(false, 3))

	assert.False(t, ShouldUnseal(true, 1, 2))
	assert.True(t, ShouldUnseal(true, 2, 2))
	assert.True(t, ShouldUnseal(true, 3, 2))
	assert.False(t, ShouldUnseal(false, 3, 2))
	assert.False(t, ShouldUnseal(true, 3, 0))
}

func TestQuorumSettings_Validate(t *testing.T) {
	require.NoError(t, DefaultQuorumSettings().Validate())

	tests := []struct {
		name     string
		settings QuorumSettings
	}{
		{"zero threshold", QuorumSettings{UnsealThreshold: 0, RequiredRolesForOpening: []Role{RoleFinanceDirector}}},
		{"threshold above directors", QuorumSettings{UnsealThreshold: 4, RequiredRolesForOpening: []Role{RoleFinanceDirector}}},
		{"no opening roles", QuorumSettings{UnsealThreshold: 1}},
		{"non-director role", QuorumSettings{UnsealThreshold: 1, RequiredRolesForOpening: []Role{RoleVendor}}},
		{"duplicate role", QuorumSettings{UnsealThreshold: 1, RequiredRolesForOpening: []Role{RoleFinanceDirector, RoleFinanceDirector}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.settings.Validate(), ErrInvalid)
		})
	}
}

func TestDefaultQuorumSettings_IsACopy(t *testing.T) {
	s := DefaultQuorumSettings()
	s.RequiredRolesForOpening[0] = RoleVendor
	assert.NotEqual(t, RoleVendor, DirectorRoles[0])
}

func TestNewActor(t *testing.T) {
	a := NewActor("u-1", "Anna", []Role{RoleTechnicalDirector, RoleCommitteeMember, RoleTechnicalDirector})

	assert.Equal(t, []Role{RoleCommitteeMember, RoleTechnicalDirector}, a.Roles)
	assert.True(t, a.HasCapability(CapVerifySeal))
	assert.True(t, a.HasCapability(CapSubmitScores))
	assert.False(t, a.HasCapability(CapOpenBids))
	assert.False(t, a.IsAdmin())

	assert.True(t, SystemActor.IsAdmin())
	assert.True(t, SystemActor.HasCapability(CapPromoteStandby))

	_, ok := ParseRole("Janitor")
	assert.False(t, ok)
	r, ok := ParseRole("FinanceDirector")
	assert.True(t, ok)
	assert.True(t, IsDirectorRole(r))
	assert.False(t, IsDirectorRole(RoleProcurementOfficer))
}

func TestCommitteeMembers(t *testing.T) {
	r := &Requisition{
		FinancialCommittee: []string{"a", "b", ""},
		TechnicalCommittee: []string{"b", "c"},
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.CommitteeMembers())
	assert.Empty(t, (&Requisition{}).CommitteeMembers())
}

func TestSecretExpired(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &Secret{ExpiresAt: at}

	assert.False(t, s.Expired(at.Add(-time.Second)))
	assert.True(t, s.Expired(at))
	assert.True(t, s.Expired(at.Add(time.Minute)))
}

func TestQuotation_MaskedCopy(t *testing.T) {
	amount := "100.00"
	q := Quotation{ID: "q-1", VendorID: "v-1", Amount: &amount, Currency: "USD", Details: "racks"}

	masked := q.MaskedCopy()
	assert.True(t, masked.Masked)
	assert.Nil(t, masked.Amount)
	assert.Empty(t, masked.Currency)
	assert.Empty(t, masked.Details)
	assert.Equal(t, "v-1", masked.VendorID)
	require.NotNil(t, q.Amount)
}

func TestErrorResponse(t *testing.T) {
	err := Errorf(KindExpired, "PIN %s expired", "s-1")
	assert.Equal(t, http.StatusGone, err.StatusCode)
	assert.Equal(t, "PIN s-1 expired", err.Error())

	wrapped := fmt.Errorf("verify: %w", err)
	assert.ErrorIs(t, wrapped, ErrExpired)
	assert.False(t, errors.Is(wrapped, ErrInvalidSecret))

	assert.Equal(t, http.StatusTooManyRequests, NewErrorResponse(KindRateLimited, "").StatusCode)
	assert.Equal(t, http.StatusInternalServerError, NewErrorResponse(ErrorKind("Bogus"), "").StatusCode)
	assert.Equal(t, "Forbidden", ErrForbidden.Error())
}

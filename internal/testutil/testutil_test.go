package testutil_test

import (
	"net/http"
	"testing"

	"settleup/internal/errors"
	"settleup/internal/models"
	"settleup/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "settlements", "comments", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}

	settlement := testutil.CreateTestSettlement(t, db, user.ID)
	if settlement.OwnerID != user.ID {
		t.Errorf("expected owner %s, got %s", user.ID, settlement.OwnerID)
	}

	var stored models.Settlement
	if err := db.First(&stored, "id = ?", settlement.ID).Error; err != nil {
		t.Fatalf("failed to reload settlement: %v", err)
	}
	if len(stored.Data.Participants) != 1 || len(stored.Data.Expenses) != 1 {
		t.Errorf("expected default sheet, got %+v", stored.Data)
	}

	testutil.ArchiveTestSettlement(t, db, settlement)
	if !settlement.IsArchived() {
		t.Error("settlement should be archived")
	}

	comment := testutil.CreateTestComment(t, db, settlement.ID, user.ID)
	if comment.GuestName != models.GuestNameOrganizer {
		t.Errorf("expected guest name %q, got %q", models.GuestNameOrganizer, comment.GuestName)
	}

	guest := testutil.CreateTestGuestComment(t, db, settlement.ID)
	if !guest.IsGuest() {
		t.Error("guest comment should have no user")
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrSettlementNotFound, "custom message")
	appErr := testutil.AssertAppError(t, err, "SETTLEMENT_NOT_FOUND")
	if appErr.Message != "custom message" {
		t.Errorf("expected custom message, got %q", appErr.Message)
	}

	testutil.AssertAppErrorStatus(t, errors.ErrCommentAlreadyDeleted, "COMMENT_DELETED", http.StatusGone)
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}

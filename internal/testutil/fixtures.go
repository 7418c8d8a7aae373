package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"settleup/internal/models"
	"settleup/internal/sheet"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestGuestPassword is the password of guest comments created by fixtures.
const TestGuestPassword = "guest-secret"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:       email,
		Password:    string(hash),
		DisplayName: "Test User",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestSettlement creates an active settlement with the default sheet.
func CreateTestSettlement(t *testing.T, db *gorm.DB, ownerID string) *models.Settlement {
	t.Helper()
	return CreateTestSettlementWithSheet(t, db, ownerID, sheet.New(fmt.Sprintf("Test Settlement %d", nextID())))
}

// CreateTestSettlementWithSheet creates an active settlement holding data.
func CreateTestSettlementWithSheet(t *testing.T, db *gorm.DB, ownerID string, data sheet.Sheet) *models.Settlement {
	t.Helper()

	settlement := &models.Settlement{
		OwnerID: ownerID,
		Title:   data.Title,
		Status:  models.SettlementStatusActive,
		Version: 1,
		Data:    data,
	}
	if err := db.Create(settlement).Error; err != nil {
		t.Fatalf("failed to create test settlement: %v", err)
	}
	return settlement
}

// ArchiveTestSettlement marks a settlement as completed.
func ArchiveTestSettlement(t *testing.T, db *gorm.DB, settlement *models.Settlement) {
	t.Helper()

	if err := db.Model(settlement).Update("status", models.SettlementStatusArchived).Error; err != nil {
		t.Fatalf("failed to archive test settlement: %v", err)
	}
	settlement.Status = models.SettlementStatusArchived
}

// CreateTestComment creates a root comment written by a user.
func CreateTestComment(t *testing.T, db *gorm.DB, settlementID, userID string) *models.Comment {
	t.Helper()

	comment := &models.Comment{
		SettlementID: settlementID,
		Content:      fmt.Sprintf("Test comment %d", nextID()),
		UserID:       &userID,
		GuestName:    models.GuestNameOrganizer,
	}
	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("failed to create test comment: %v", err)
	}
	return comment
}

// CreateTestGuestComment creates a root comment written by a guest whose
// password is TestGuestPassword.
func CreateTestGuestComment(t *testing.T, db *gorm.DB, settlementID string) *models.Comment {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestGuestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	n := nextID()
	comment := &models.Comment{
		SettlementID: settlementID,
		Content:      fmt.Sprintf("Guest comment %d", n),
		GuestName:    fmt.Sprintf("Guest %d", n),
		PasswordHash: string(hash),
	}
	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("failed to create test guest comment: %v", err)
	}
	return comment
}

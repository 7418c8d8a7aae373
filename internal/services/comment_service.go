package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "settleup/internal/errors"
	"settleup/internal/events"
	"settleup/internal/metrics"
	"settleup/internal/models"
)

// commentService handles comment-related business logic.
type commentService struct {
	db        *gorm.DB
	publisher events.Publisher
	metrics   *metrics.Metrics
}

// CommentOption configures a comment service.
type CommentOption func(*commentService)

// WithCommentPublisher sets the publisher used for comment change events.
func WithCommentPublisher(p events.Publisher) CommentOption {
	return func(s *commentService) { s.publisher = p }
}

// WithCommentMetrics counts comment changes on m.
func WithCommentMetrics(m *metrics.Metrics) CommentOption {
	return func(s *commentService) { s.metrics = m }
}

// NewCommentService creates a new CommentServicer.
func NewCommentService(db *gorm.DB, opts ...CommentOption) CommentServicer {
	s := &commentService{db: db, publisher: events.NopPublisher{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCommentTree returns the threaded comments of a settlement.
func (s *commentService) GetCommentTree(settlementID string) ([]*CommentNode, error) {
	if _, err := s.getSettlement(settlementID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.Where("settlement_id = ?", settlementID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buildCommentTree(comments), nil
}

// CreateUserComment posts a comment as a signed-in user.
func (s *commentService) CreateUserComment(userID, settlementID string, in NewComment) (*models.Comment, error) {
	comment := &models.Comment{
		SettlementID:    settlementID,
		ParentCommentID: in.ParentCommentID,
		UserID:          &userID,
		GuestName:       models.GuestNameOrganizer,
	}
	return s.create(comment, in)
}

// CreateGuestComment posts a comment without an account. The password is
// needed later to edit or delete it.
func (s *commentService) CreateGuestComment(settlementID string, in NewComment) (*models.Comment, error) {
	name := strings.TrimSpace(in.GuestName)
	if name == "" || in.Password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "guest name and password are required")
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		SettlementID:    settlementID,
		ParentCommentID: in.ParentCommentID,
		GuestName:       name,
		PasswordHash:    hash,
	}
	return s.create(comment, in)
}

// UpdateComment edits a comment as a signed-in user. The settlement owner
// may edit any comment; other users only their own.
func (s *commentService) UpdateComment(userID, commentID, content string, imageURLs []string) (*models.Comment, error) {
	comment, settlement, err := s.getComment(commentID)
	if err != nil {
		return nil, err
	}

	isAuthor := comment.UserID != nil && *comment.UserID == userID
	if settlement.OwnerID != userID && !isAuthor {
		return nil, apperrors.ErrForbidden
	}
	return s.updateContent(comment, content, imageURLs)
}

// UpdateGuestComment edits a guest comment after checking its password.
func (s *commentService) UpdateGuestComment(commentID, password, content string, imageURLs []string) (*models.Comment, error) {
	comment, _, err := s.getComment(commentID)
	if err != nil {
		return nil, err
	}
	if err := checkGuestPassword(comment, password); err != nil {
		return nil, err
	}
	return s.updateContent(comment, content, imageURLs)
}

// VerifyGuestPassword reports whether password unlocks a guest comment.
func (s *commentService) VerifyGuestPassword(commentID, password string) (bool, error) {
	comment, _, err := s.getComment(commentID)
	if err != nil {
		return false, err
	}
	if !comment.IsGuest() {
		return false, apperrors.ErrNotGuestComment
	}
	return bcrypt.CompareHashAndPassword([]byte(comment.PasswordHash), []byte(password)) == nil, nil
}

// DeleteComment soft-deletes a comment as a signed-in user. The settlement
// owner may delete any comment, any user may delete a guest comment, and
// authors may delete their own.
func (s *commentService) DeleteComment(userID, commentID string) error {
	comment, settlement, err := s.getComment(commentID)
	if err != nil {
		return err
	}

	isAuthor := comment.UserID != nil && *comment.UserID == userID
	if settlement.OwnerID != userID && !comment.IsGuest() && !isAuthor {
		return apperrors.ErrForbidden
	}
	return s.markDeleted(comment)
}

// DeleteGuestComment soft-deletes a guest comment after checking its password.
func (s *commentService) DeleteGuestComment(commentID, password string) error {
	comment, _, err := s.getComment(commentID)
	if err != nil {
		return err
	}
	if err := checkGuestPassword(comment, password); err != nil {
		return err
	}
	return s.markDeleted(comment)
}

// SetPinned pins or unpins a comment. Only the settlement owner may pin.
func (s *commentService) SetPinned(userID, commentID string, pinned bool) (*models.Comment, error) {
	comment, settlement, err := s.getComment(commentID)
	if err != nil {
		return nil, err
	}
	if settlement.OwnerID != userID {
		return nil, apperrors.ErrForbidden
	}

	if err := s.db.Model(comment).Update("is_pinned", pinned).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	comment.IsPinned = pinned

	s.notify(comment, events.TypeUpdate)
	s.metrics.CommentChanged("pin", comment.IsGuest())
	return comment, nil
}

func (s *commentService) create(comment *models.Comment, in NewComment) (*models.Comment, error) {
	content, images, err := validateCommentBody(in.Content, in.ImageURLs)
	if err != nil {
		return nil, err
	}
	comment.Content = content
	comment.ImageURLs = images

	if _, err := s.getSettlement(comment.SettlementID); err != nil {
		return nil, err
	}
	if comment.ParentCommentID != nil {
		var parent models.Comment
		err := s.db.Where("id = ? AND settlement_id = ?", *comment.ParentCommentID, comment.SettlementID).First(&parent).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrInvalidParentComment
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if err := s.db.Create(comment).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notify(comment, events.TypeInsert)
	s.metrics.CommentChanged("create", comment.IsGuest())
	return comment, nil
}

func (s *commentService) updateContent(comment *models.Comment, content string, imageURLs []string) (*models.Comment, error) {
	content, images, err := validateCommentBody(content, imageURLs)
	if err != nil {
		return nil, err
	}

	comment.Content = content
	comment.ImageURLs = images
	if err := s.db.Model(comment).Select("content", "image_url", "updated_at").Updates(comment).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notify(comment, events.TypeUpdate)
	s.metrics.CommentChanged("update", comment.IsGuest())
	return comment, nil
}

func (s *commentService) markDeleted(comment *models.Comment) error {
	if err := s.db.Model(comment).Update("is_deleted", true).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	comment.IsDeleted = true

	s.notify(comment, events.TypeUpdate)
	s.metrics.CommentChanged("delete", comment.IsGuest())
	return nil
}

// getComment loads a live comment together with its settlement.
func (s *commentService) getComment(commentID string) (*models.Comment, *models.Settlement, error) {
	var comment models.Comment
	if err := s.db.Where("id = ?", commentID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrCommentNotFound
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if comment.IsDeleted {
		return nil, nil, apperrors.ErrCommentAlreadyDeleted
	}

	settlement, err := s.getSettlement(comment.SettlementID)
	if err != nil {
		return nil, nil, err
	}
	return &comment, settlement, nil
}

func (s *commentService) getSettlement(settlementID string) (*models.Settlement, error) {
	var settlement models.Settlement
	err := s.db.Select("id", "owner_id", "status").
		Where("id = ? AND status <> ?", settlementID, models.SettlementStatusDeleted).
		First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSettlementNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &settlement, nil
}

func (s *commentService) notify(comment *models.Comment, eventType string) {
	events.Notify(context.Background(), s.publisher, events.CommentsChannel(comment.SettlementID), events.Event{
		Type:         eventType,
		Table:        "comments",
		ID:           comment.ID,
		SettlementID: comment.SettlementID,
	})
}

// validateCommentBody trims the content and drops blank image URLs. A
// comment needs text or at least one image.
func validateCommentBody(content string, imageURLs []string) (string, []string, error) {
	content = strings.TrimSpace(content)

	images := make([]string, 0, len(imageURLs))
	for _, u := range imageURLs {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}

	if len(images) > models.MaxCommentImages {
		return "", nil, apperrors.ErrTooManyImages
	}
	if content == "" && len(images) == 0 {
		return "", nil, apperrors.ErrEmptyComment
	}
	return content, images, nil
}

func checkGuestPassword(comment *models.Comment, password string) error {
	if !comment.IsGuest() {
		return apperrors.ErrNotGuestComment
	}
	if bcrypt.CompareHashAndPassword([]byte(comment.PasswordHash), []byte(password)) != nil {
		return apperrors.ErrInvalidGuestPassword
	}
	return nil
}

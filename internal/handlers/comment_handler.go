package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "settleup/internal/errors"
	"settleup/internal/services"
)

// CommentHandler handles comment-related requests.
type CommentHandler struct {
	commentService services.CommentServicer
	auditService   services.AuditServicer
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(commentService services.CommentServicer, auditService services.AuditServicer) *CommentHandler {
	return &CommentHandler{commentService: commentService, auditService: auditService}
}

// CreateCommentRequest represents the request payload for a signed-in comment.
type CreateCommentRequest struct {
	ParentCommentID *string  `json:"parent_comment_id" binding:"omitempty,uuid"`
	Content         string   `json:"content" binding:"max=2000"`
	ImageURLs       []string `json:"image_url" binding:"dive,max=2048"`
}

// CreateGuestCommentRequest represents the request payload for a guest comment.
type CreateGuestCommentRequest struct {
	ParentCommentID *string  `json:"parent_comment_id" binding:"omitempty,uuid"`
	Content         string   `json:"content" binding:"max=2000"`
	ImageURLs       []string `json:"image_url" binding:"dive,max=2048"`
	GuestName       string   `json:"guest_name" binding:"required,not_blank,max=50"`
	Password        string   `json:"password" binding:"required,min=4,max_bytes=72"`
}

// UpdateCommentRequest represents the request payload for editing a comment.
type UpdateCommentRequest struct {
	Content   string   `json:"content" binding:"max=2000"`
	ImageURLs []string `json:"image_url" binding:"dive,max=2048"`
}

// UpdateGuestCommentRequest represents the request payload for editing a guest comment.
type UpdateGuestCommentRequest struct {
	Password  string   `json:"password" binding:"required"`
	Content   string   `json:"content" binding:"max=2000"`
	ImageURLs []string `json:"image_url" binding:"dive,max=2048"`
}

// GuestPasswordRequest carries the password of a guest comment.
type GuestPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// PinCommentRequest represents the request payload for pinning a comment.
type PinCommentRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

// GetComments handles listing the comment threads of a settlement
// @Summary     List comments
// @Description Threaded comments of a settlement, pinned first then newest
// @Tags        comments
// @Produce     json
// @Param       id path string true "Settlement ID"
// @Success     200 {array}  services.CommentNode "Comment threads"
// @Failure     400 {object} ErrorResponse "Invalid settlement ID"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/comments [get]
func (h *CommentHandler) GetComments(c *gin.Context) {
	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tree, err := h.commentService.GetCommentTree(settlementID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": tree})
}

// CreateComment handles posting a comment as a signed-in user
// @Summary     Create comment
// @Description Post a comment or reply as the authenticated user
// @Tags        comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Settlement ID"
// @Param       request body CreateCommentRequest true "Comment"
// @Success     201 {object} models.Comment "Comment created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/comments [post]
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	comment, err := h.commentService.CreateUserComment(userID, settlementID, services.NewComment{
		ParentCommentID: req.ParentCommentID,
		Content:         req.Content,
		ImageURLs:       req.ImageURLs,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// CreateGuestComment handles posting a comment without an account
// @Summary     Create guest comment
// @Description Post a comment protected by a password
// @Tags        comments
// @Accept      json
// @Produce     json
// @Param       id      path string                    true "Settlement ID"
// @Param       request body CreateGuestCommentRequest true "Comment"
// @Success     201 {object} models.Comment "Comment created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/comments/guest [post]
func (h *CommentHandler) CreateGuestComment(c *gin.Context) {
	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGuestCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	comment, err := h.commentService.CreateGuestComment(settlementID, services.NewComment{
		ParentCommentID: req.ParentCommentID,
		Content:         req.Content,
		ImageURLs:       req.ImageURLs,
		GuestName:       req.GuestName,
		Password:        req.Password,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// UpdateComment handles editing a comment as a signed-in user
// @Summary     Update comment
// @Description Edit a comment. The settlement owner may edit any comment, others only their own.
// @Tags        comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Comment ID"
// @Param       request body UpdateCommentRequest true "Comment"
// @Success     200 {object} models.Comment "Updated comment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Comment not found"
// @Failure     410 {object} ErrorResponse "Comment deleted"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /comments/{id} [put]
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	commentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	comment, err := h.commentService.UpdateComment(userID, commentID, req.Content, req.ImageURLs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// UpdateGuestComment handles editing a guest comment with its password
// @Summary     Update guest comment
// @Description Edit a guest comment after checking its password
// @Tags        comments
// @Accept      json
// @Produce     json
// @Param       id      path string                    true "Comment ID"
// @Param       request body UpdateGuestCommentRequest true "Comment"
// @Success     200 {object} models.Comment "Updated comment"
// @Failure     400 {object} ErrorResponse "Invalid input or not a guest comment"
// @Failure     403 {object} ErrorResponse "Wrong password"
// @Failure     404 {object} ErrorResponse "Comment not found"
// @Failure     410 {object} ErrorResponse "Comment deleted"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /comments/{id}/guest [put]
func (h *CommentHandler) UpdateGuestComment(c *gin.Context) {
	commentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateGuestCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	comment, err := h.commentService.UpdateGuestComment(commentID, req.Password, req.Content, req.ImageURLs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// VerifyGuestPassword handles checking a guest comment password
// @Summary     Verify guest password
// @Description Check a guest comment password before showing edit controls
// @Tags        comments
// @Accept      json
// @Produce     json
// @Param       id      path string               true "Comment ID"
// @Param       request body GuestPasswordRequest true "Password"
// @Success     200 {object} map[string]bool "Whether the password matches"
// @Failure     400 {object} ErrorResponse "Invalid input or not a guest comment"
// @Failure     404 {object} ErrorResponse "Comment not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /comments/{id}/verify [post]
func (h *CommentHandler) VerifyGuestPassword(c *gin.Context) {
	commentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req GuestPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	valid, err := h.commentService.VerifyGuestPassword(commentID, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// DeleteComment handles deleting a comment as a signed-in user
// @Summary     Delete comment
// @Description Soft-delete a comment. Owners may delete any comment, users their own and any guest comment.
// @Tags        comments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Comment ID"
// @Success     200 {object} map[string]string "Comment deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Comment not found"
// @Failure     410 {object} ErrorResponse "Comment already deleted"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /comments/{id} [delete]
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	commentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.commentService.DeleteComment(userID, commentID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteComment, services.ResourceComment, commentID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// DeleteGuestComment handles deleting a guest comment with its password
// @Summary     Delete guest comment
// @Description Soft-delete a guest comment after checking its password
// @Tags        comments
// @Accept      json
// @Produce     json
// @Param       id      path string               true "Comment ID"
// @Param       request body GuestPasswordRequest true "Password"
// @Success     200 {object} map[string]string "Comment deleted"
// @Failure     400 {object} ErrorResponse "Invalid input or not a guest comment"
// @Failure     403 {object} ErrorResponse "Wrong password"
// @Failure     404 {object} ErrorResponse "Comment not found"
// @Failure     410 {object} ErrorResponse "Comment already deleted"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /comments/{id}/guest [delete]
func (h *CommentHandler) DeleteGuestComment(c *gin.Context) {
	commentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req GuestPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.commentService.DeleteGuestComment(commentID, req.Password); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// PinComment handles pinning or unpinning a comment
// @Summary     Pin comment
// @Description Pin or unpin a comment. Only the settlement owner may pin.
// @Tags        comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Comment ID"
// @Param       request body PinCommentRequest true "Pin state"
// @Success     200 {object} models.Comment "Updated comment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Comment not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /comments/{id}/pin [put]
func (h *CommentHandler) PinComment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	commentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PinCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	comment, err := h.commentService.SetPinned(userID, commentID, *req.Pinned)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditPinComment, services.ResourceComment, commentID, c.ClientIP(),
		map[string]interface{}{"pinned": *req.Pinned})

	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/service"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

type commentService interface {
	AddComment(ctx context.Context, input service.CommentInput, viewer models.Viewer) (*models.Comment, error)
	ListComments(ctx context.Context, documentID string, viewer models.Viewer) ([]*models.CommentThread, error)
	MarkCommentRead(ctx context.Context, commentID string, viewer models.Viewer) error
}

// CommentHandler exposes document discussions.
type CommentHandler struct {
	service commentService
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(service commentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// List godoc
// @Summary List the comment threads of a document
// @Tags Comments
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	threads, err := h.service.ListComments(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, threads, nil)
}

// Add godoc
// @Summary Comment on a document
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.AddCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/comments [post]
func (h *CommentHandler) Add(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid comment payload"))
		return
	}
	comment, err := h.service.AddComment(c.Request.Context(), service.CommentInput{
		DocumentID:      c.Param("id"),
		FieldName:       req.FieldName,
		ParentCommentID: req.ParentCommentID,
		Text:            req.Text,
		AuthorRole:      req.Actor,
	}, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// MarkRead godoc
// @Summary Mark a comment as read
// @Tags Comments
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id}/read [post]
func (h *CommentHandler) MarkRead(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	if err := h.service.MarkCommentRead(c.Request.Context(), c.Param("id"), viewer); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

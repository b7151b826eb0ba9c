package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/services"
)

type ArticleHandler struct {
	log      *logger.Logger
	articles services.ArticleService
}

func NewArticleHandler(log *logger.Logger, articles services.ArticleService) *ArticleHandler {
	return &ArticleHandler{
		log:      log.With("handler", "ArticleHandler"),
		articles: articles,
	}
}

func (h *ArticleHandler) List(c *gin.Context) {
	articles, err := h.articles.List(c.Request.Context())
	if err != nil {
		RespondFault(c, "failed to list articles", err)
		return
	}
	RespondOK(c, articles)
}

func (h *ArticleHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid article id", err)
		return
	}
	article, err := h.articles.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondFault(c, "failed to load article", err)
		return
	}
	RespondOK(c, article)
}

func (h *ArticleHandler) Create(c *gin.Context) {
	var body struct {
		Link         string `json:"link"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		PostedByName string `json:"posted_by_name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	article, err := h.articles.Create(c.Request.Context(), services.CreateArticleInput{
		Link:         body.Link,
		Title:        body.Title,
		Description:  body.Description,
		PostedByName: body.PostedByName,
	})
	if err != nil {
		RespondFault(c, "failed to create article", err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

func (h *ArticleHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid article id", err)
		return
	}
	var body struct {
		Title        *string `json:"title"`
		Description  *string `json:"description"`
		PostedByName *string `json:"posted_by_name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	article, err := h.articles.Update(c.Request.Context(), id, services.UpdateArticleInput{
		Title:        body.Title,
		Description:  body.Description,
		PostedByName: body.PostedByName,
	})
	if err != nil {
		RespondFault(c, "failed to update article", err)
		return
	}
	RespondOK(c, article)
}

func (h *ArticleHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid article id", err)
		return
	}
	if err := h.articles.Delete(c.Request.Context(), id); err != nil {
		RespondFault(c, "failed to delete article", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Metadata backs the live preview while the share form is being
// filled in; the user can still edit the result before submitting.
func (h *ArticleHandler) Metadata(c *gin.Context) {
	link := c.Query("url")
	md, err := h.articles.PreviewMetadata(c.Request.Context(), link)
	if err != nil {
		RespondFault(c, "metadata lookup failed", err)
		return
	}
	RespondOK(c, md)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// @Summary Отправка анонимной заявки
// @Description Принимает текст истории и ставит его в очередь модерации
// @Tags stories
// @Accept json
// @Produce json
// @Param request body writeStoryRequest true "Текст заявки"
// @Success 202 {object} writeStoryResponse "Заявка принята"
// @Failure 400 {object} ErrorResponse "Неверные данные запроса"
// @Failure 429 {object} ErrorResponse "Превышен лимит заявок"
// @Router /api/stories/write [post]
func (h *StoryHandler) writeStory(c *gin.Context) {
	var req writeStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	identity := h.anonIdentity(c)

	created, err := h.submissions.Submit(c.Request.Context(), identity, req.Content)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	submissionsTotal.Inc()

	c.JSON(http.StatusAccepted, writeStoryResponse{
		ID:        created.ID,
		Status:    created.Status,
		TrackCode: created.TrackCode,
		CreatedAt: created.CreatedAt,
	})
}

// @Summary Статус заявки по трек-коду
// @Tags stories
// @Produce json
// @Param code path string true "Трек-код"
// @Success 200 {object} models.TrackStatus
// @Failure 404 {object} ErrorResponse "Заявка не найдена"
// @Router /api/track/{code} [get]
func (h *StoryHandler) trackStatus(c *gin.Context) {
	status, err := h.tracker.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// anonIdentity возвращает анонимную identity из куки, при отсутствии
// создает новую и выставляет куку.
func (h *StoryHandler) anonIdentity(c *gin.Context) string {
	if id, err := c.Cookie(anonCookieName); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(anonCookieName, id, anonCookieMaxAge, "/", "", false, true)
	h.logger.Debug("Issued anonymous identity", zap.String("anon_id", id))
	return id
}

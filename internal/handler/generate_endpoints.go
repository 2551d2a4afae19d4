package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"after2am-server/internal/validation"
)

// @Summary Запуск генерации историй
// @Description Ставит в очередь генерацию по сетке настроение x категория.
// Заданное поле фиксирует измерение, пустое - разворачивается во все значения.
// @Tags stories
// @Accept json
// @Produce json
// @Param request body startGenerationRequest false "Селектор генерации"
// @Success 202 {object} startGenerationResponse "Количество поставленных задач"
// @Failure 400 {object} ErrorResponse "Неизвестное настроение или категория"
// @Router /api/stories/start [post]
func (h *StoryHandler) startGeneration(c *gin.Context) {
	var req startGenerationRequest
	// Пустое тело допустимо: полный fan-out по всей сетке.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
			return
		}
	}

	mood, category, err := validation.ValidateTrigger(req.Mood, req.Category)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	dispatched := h.fanout.Trigger(c.Request.Context(), mood, category)

	generationsDispatchedTotal.Add(float64(dispatched))

	c.JSON(http.StatusAccepted, startGenerationResponse{Dispatched: dispatched})
}

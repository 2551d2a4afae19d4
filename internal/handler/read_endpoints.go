package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"after2am-server/internal/models"
)

// @Summary Список опубликованных историй
// @Tags stories
// @Produce json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {array} models.StorySummary
// @Router /api/stories [get]
func (h *StoryHandler) listStories(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	summaries, err := h.stories.List(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// @Summary Опубликованная история по slug
// @Tags stories
// @Produce json
// @Param slug path string true "Slug истории"
// @Success 200 {object} models.Story
// @Failure 404 {object} ErrorResponse "История не найдена"
// @Router /api/stories/{slug} [get]
func (h *StoryHandler) getStory(c *gin.Context) {
	story, err := h.stories.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// @Summary Случайная история по настроению
// @Description Редиректит на страницу случайной истории выбранного настроения,
// исключая уже прочитанные (?exclude=slug1,slug2). EERIE означает "любое
// настроение". Неизвестное настроение и пустой пул ведут на /404: это
// навигационный маршрут, ошибки здесь тоже редиректы.
// @Tags stories
// @Param mood path string true "Настроение"
// @Param exclude query string false "Slug-и, исключаемые из выборки (через запятую)"
// @Success 302
// @Router /api/stories/mood/{mood} [get]
func (h *StoryHandler) pickByMood(c *gin.Context) {
	mood, err := models.ParseMood(c.Param("mood"))
	if err != nil {
		c.Redirect(http.StatusFound, "/404")
		return
	}

	var excludeSlugs []string
	if raw := c.Query("exclude"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				excludeSlugs = append(excludeSlugs, s)
			}
		}
	}

	slug, err := h.selector.Pick(c.Request.Context(), mood, excludeSlugs)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.Redirect(http.StatusFound, "/404")
			return
		}
		handleServiceError(c, err)
		return
	}

	picksTotal.WithLabelValues(string(mood)).Inc()

	c.Redirect(http.StatusFound, "/story/"+url.PathEscape(slug)+"?mood="+url.QueryEscape(string(mood)))
}

// @Summary Список настроений
// @Description Закрытый список настроений с фразами выбора.
// @Tags stories
// @Produce json
// @Success 200 {array} models.MoodMetadata
// @Router /api/moods [get]
func (h *StoryHandler) listMoods(c *gin.Context) {
	c.JSON(http.StatusOK, models.MoodConfig())
}

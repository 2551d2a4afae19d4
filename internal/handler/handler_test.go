package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"after2am-server/internal/handler"
	"after2am-server/internal/models"
)

// --- Локальные моки сервисного слоя --- //

type mockSubmissions struct{ mock.Mock }

func (m *mockSubmissions) Submit(ctx context.Context, identity, content string) (*models.StoryRequest, error) {
	args := m.Called(ctx, identity, content)
	var req *models.StoryRequest
	if args.Get(0) != nil {
		req = args.Get(0).(*models.StoryRequest)
	}
	return req, args.Error(1)
}

type mockFanout struct{ mock.Mock }

func (m *mockFanout) Trigger(ctx context.Context, mood *models.Mood, category *models.Category) int {
	args := m.Called(ctx, mood, category)
	return args.Int(0)
}

type mockSelector struct{ mock.Mock }

func (m *mockSelector) Pick(ctx context.Context, mood models.Mood, excludeSlugs []string) (string, error) {
	args := m.Called(ctx, mood, excludeSlugs)
	return args.String(0), args.Error(1)
}

type mockTracker struct{ mock.Mock }

func (m *mockTracker) Lookup(ctx context.Context, trackCode string) (*models.TrackStatus, error) {
	args := m.Called(ctx, trackCode)
	var status *models.TrackStatus
	if args.Get(0) != nil {
		status = args.Get(0).(*models.TrackStatus)
	}
	return status, args.Error(1)
}

type mockStories struct{ mock.Mock }

func (m *mockStories) List(ctx context.Context, limit, offset int) ([]models.StorySummary, error) {
	args := m.Called(ctx, limit, offset)
	var summaries []models.StorySummary
	if args.Get(0) != nil {
		summaries = args.Get(0).([]models.StorySummary)
	}
	return summaries, args.Error(1)
}

func (m *mockStories) GetBySlug(ctx context.Context, slug string) (*models.Story, error) {
	args := m.Called(ctx, slug)
	var story *models.Story
	if args.Get(0) != nil {
		story = args.Get(0).(*models.Story)
	}
	return story, args.Error(1)
}

type handlerFixture struct {
	router      *gin.Engine
	submissions *mockSubmissions
	fanout      *mockFanout
	selector    *mockSelector
	tracker     *mockTracker
	stories     *mockStories
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		submissions: &mockSubmissions{},
		fanout:      &mockFanout{},
		selector:    &mockSelector{},
		tracker:     &mockTracker{},
		stories:     &mockStories{},
	}

	h := handler.NewStoryHandler(f.submissions, f.fanout, f.selector, f.tracker, f.stories, zap.NewNop())
	f.router = gin.New()
	h.RegisterRoutes(f.router)
	return f
}

func (f *handlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// --- POST /api/stories/write --- //

func TestWriteStory_AcceptedAndSetsCookie(t *testing.T) {
	f := newHandlerFixture(t)

	created := &models.StoryRequest{
		ID:        uuid.New(),
		Status:    models.RequestStatusPending,
		TrackCode: "night-7k2m",
		CreatedAt: time.Date(2026, 3, 1, 2, 17, 0, 0, time.UTC),
	}
	f.submissions.On("Submit", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(created, nil).Once()

	w := f.do(http.MethodPost, "/api/stories/write",
		gin.H{"content": "the hallway light kept flickering long after everyone went home that night"})

	require.Equal(t, http.StatusAccepted, w.Code)

	// Ответ - проекция созданной заявки, а не один трек-код.
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID.String(), resp["id"])
	assert.Equal(t, string(models.RequestStatusPending), resp["status"])
	assert.Equal(t, "night-7k2m", resp["trackCode"])
	assert.Equal(t, "2026-03-01T02:17:00Z", resp["createdAt"])

	// Первая заявка выставляет анонимную куку.
	cookies := w.Result().Cookies()
	var found *http.Cookie
	for _, c := range cookies {
		if c.Name == "a2s_anon_id" {
			found = c
		}
	}
	require.NotNil(t, found, "anonymous identity cookie must be set")
	assert.True(t, found.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, found.SameSite)
	assert.NotEmpty(t, found.Value)
}

func TestWriteStory_ReusesExistingCookie(t *testing.T) {
	f := newHandlerFixture(t)

	f.submissions.On("Submit", mock.Anything, "existing-anon-id", mock.AnythingOfType("string")).
		Return(&models.StoryRequest{TrackCode: "quiet-3abc", Status: models.RequestStatusPending}, nil).Once()

	data, _ := json.Marshal(gin.H{"content": "ten words of a story that already has an identity"})
	req := httptest.NewRequest(http.MethodPost, "/api/stories/write", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "a2s_anon_id", Value: "existing-anon-id"})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	f.submissions.AssertExpectations(t)
}

func TestWriteStory_MissingContent(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(http.MethodPost, "/api/stories/write", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.submissions.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestWriteStory_RateLimited(t *testing.T) {
	f := newHandlerFixture(t)

	f.submissions.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.ErrRateLimited).Once()

	w := f.do(http.MethodPost, "/api/stories/write",
		gin.H{"content": "a story that arrives one request too soon for its author"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// --- POST /api/stories/start --- //

func TestStartGeneration_EmptyBodyFansOut(t *testing.T) {
	f := newHandlerFixture(t)

	f.fanout.On("Trigger", mock.Anything, (*models.Mood)(nil), (*models.Category)(nil)).
		Return(25).Once()

	w := f.do(http.MethodPost, "/api/stories/start", nil)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 25, resp["dispatched"])
}

func TestStartGeneration_PinnedMood(t *testing.T) {
	f := newHandlerFixture(t)

	f.fanout.On("Trigger", mock.Anything, mock.MatchedBy(func(m *models.Mood) bool {
		return m != nil && *m == models.MoodHaunting
	}), (*models.Category)(nil)).Return(5).Once()

	w := f.do(http.MethodPost, "/api/stories/start", gin.H{"mood": "haunting"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	f.fanout.AssertExpectations(t)
}

func TestStartGeneration_UnknownMood(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(http.MethodPost, "/api/stories/start", gin.H{"mood": "melancholy"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "violations")
	f.fanout.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything, mock.Anything)
}

// --- GET /api/stories/mood/:mood --- //

func TestPickByMood_RedirectsToStory(t *testing.T) {
	f := newHandlerFixture(t)

	f.selector.On("Pick", mock.Anything, models.MoodHaunting, []string{"read-one", "read-two"}).
		Return("the-hallway-light", nil).Once()

	w := f.do(http.MethodGet, "/api/stories/mood/HAUNTING?exclude=read-one,read-two", nil)

	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Equal(t, "/story/the-hallway-light?mood=HAUNTING", location)
}

func TestPickByMood_LowercaseMoodAccepted(t *testing.T) {
	f := newHandlerFixture(t)

	f.selector.On("Pick", mock.Anything, models.MoodEerie, []string(nil)).
		Return("static-on-channel-nine", nil).Once()

	w := f.do(http.MethodGet, "/api/stories/mood/eerie", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/story/static-on-channel-nine"))
}

func TestPickByMood_EmptyPoolRedirectsTo404(t *testing.T) {
	f := newHandlerFixture(t)

	f.selector.On("Pick", mock.Anything, models.MoodThoughtful, []string(nil)).
		Return("", models.ErrNotFound).Once()

	w := f.do(http.MethodGet, "/api/stories/mood/THOUGHTFUL", nil)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/404", w.Header().Get("Location"))
}

func TestPickByMood_UnknownMoodRedirectsTo404(t *testing.T) {
	f := newHandlerFixture(t)

	// Навигационный маршрут: кривое настроение - тоже редирект, не JSON-ошибка.
	w := f.do(http.MethodGet, "/api/stories/mood/SLEEPY", nil)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/404", w.Header().Get("Location"))
	f.selector.AssertNotCalled(t, "Pick", mock.Anything, mock.Anything, mock.Anything)
}

// --- GET /api/stories, /api/stories/:slug, /api/moods --- //

func TestListStories_DefaultPagination(t *testing.T) {
	f := newHandlerFixture(t)

	f.stories.On("List", mock.Anything, 20, 0).
		Return([]models.StorySummary{{Slug: "the-hallway-light"}}, nil).Once()

	w := f.do(http.MethodGet, "/api/stories", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "the-hallway-light")
}

func TestListStories_ExplicitPagination(t *testing.T) {
	f := newHandlerFixture(t)

	f.stories.On("List", mock.Anything, 10, 30).
		Return([]models.StorySummary{}, nil).Once()

	w := f.do(http.MethodGet, "/api/stories?limit=10&offset=30", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	f.stories.AssertExpectations(t)
}

func TestGetStory_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	f.stories.On("GetBySlug", mock.Anything, "missing-story").
		Return(nil, models.ErrNotFound).Once()

	w := f.do(http.MethodGet, "/api/stories/missing-story", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMoods_ReturnsClosedList(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(http.MethodGet, "/api/moods", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var moods []models.MoodMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moods))
	require.Len(t, moods, 5)
	assert.Equal(t, models.MoodEerie, moods[4].ID)
	assert.Equal(t, "Surprise me", moods[4].Phrase)
}

// --- GET /api/track/:code --- //

func TestTrackStatus_Found(t *testing.T) {
	f := newHandlerFixture(t)

	f.tracker.On("Lookup", mock.Anything, "night-7k2m").
		Return(&models.TrackStatus{TrackCode: "night-7k2m", Status: models.RequestStatusPending}, nil).Once()

	w := f.do(http.MethodGet, "/api/track/night-7k2m", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PENDING")
}

func TestTrackStatus_Unknown(t *testing.T) {
	f := newHandlerFixture(t)

	f.tracker.On("Lookup", mock.Anything, "nope-0000").
		Return(nil, models.ErrRequestNotFound).Once()

	w := f.do(http.MethodGet, "/api/track/nope-0000", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

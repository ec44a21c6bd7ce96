package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/storyreel/internal/db"
	"github.com/bobarin/storyreel/internal/models"
	"github.com/bobarin/storyreel/internal/queue"
	"github.com/bobarin/storyreel/internal/services"
	"github.com/bobarin/storyreel/internal/storage"
	"github.com/bobarin/storyreel/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Multipart parse ceiling — profile pictures are small, the form is tiny.
const maxUploadBytes = 32 << 20

type Handler struct {
	db       *db.DB
	queue    *queue.Queue
	storage  *storage.Storage
	reddit   *services.RedditService
	openai   *services.OpenAIService
	pipeline *worker.Pipeline
}

func NewHandler(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	redditSvc *services.RedditService,
	openaiSvc *services.OpenAIService,
	pipeline *worker.Pipeline,
) *Handler {
	return &Handler{
		db:       database,
		queue:    q,
		storage:  stor,
		reddit:   redditSvc,
		openai:   openaiSvc,
		pipeline: pipeline,
	}
}

// GetStory handles GET /v1/story?community=<id>
// Fetches one random text story from the community's recent posts.
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	community := r.URL.Query().Get("community")
	if community == "" {
		community = "news"
	}

	title, body, err := h.reddit.FetchStory(r.Context(), community)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.StoryResponse{Title: title, Body: body})
}

// Rewrite handles POST /v1/rewrite
// Weaves the product into the story; falls back to the original text on
// provider failure, with the degraded flag set.
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req models.RewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Body) == "" || strings.TrimSpace(req.Product) == "" {
		respondError(w, http.StatusBadRequest, "Story and product are required")
		return
	}

	rewritten, degraded := h.openai.RewriteStory(r.Context(), req.Body, req.Product)
	respondJSON(w, http.StatusOK, models.RewriteResponse{
		RewrittenBody: rewritten,
		Degraded:      degraded,
	})
}

// Generate handles POST /v1/generate (multipart)
// Runs the whole pipeline synchronously and returns the artifact set.
// Progress events stream to any connected /ws viewer while it runs.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseGenerationForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Once started, a render runs to completion or failure — a client
	// disconnect must not abort in-flight synthesis or ffmpeg work.
	result, err := h.pipeline.Run(context.WithoutCancel(r.Context()), *req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CreateJob handles POST /v1/jobs (multipart)
// Queues the same generation request for background processing.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseGenerationForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := h.queue.EnqueueGenerate(r.Context(), *req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateJobResponse{
		JobID:  jobID,
		Status: models.JobStatusQueued,
	})
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	record, err := h.queue.GetJobRecord(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read job")
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// ListStories handles GET /v1/stories?user_id=<uuid>&limit=<n>
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	stories, err := h.db.ListStoriesByUser(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list stories")
		return
	}

	respondJSON(w, http.StatusOK, stories)
}

// GetStoryByID handles GET /v1/stories/{id}
func (h *Handler) GetStoryByID(w http.ResponseWriter, r *http.Request) {
	storyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid story ID")
		return
	}

	story, err := h.db.GetStory(r.Context(), storyID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Story not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to read story")
		return
	}

	respondJSON(w, http.StatusOK, story)
}

// UpsertUser handles POST /v1/users — the "login or register" flow. A
// payload with an ID upserts that row; without one the email decides
// between returning the existing account and creating a new one.
func (h *Handler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	if req.ID != nil {
		user := &models.User{ID: *req.ID, Email: req.Email, DisplayName: req.DisplayName}
		if err := h.db.UpsertUser(r.Context(), user); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to upsert user")
			return
		}
		respondJSON(w, http.StatusOK, user)
		return
	}

	existing, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		respondJSON(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}

	user := &models.User{ID: uuid.New(), Email: req.Email, DisplayName: req.DisplayName}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /v1/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.db.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to read user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// ServeFile handles GET /files/{name} — streams a rendered artifact.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	path, err := h.storage.Resolve(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	http.ServeFile(w, r, path)
}

// parseGenerationForm reads the multipart /generate form, saving the
// uploaded profile picture into the artifacts directory.
func (h *Handler) parseGenerationForm(r *http.Request) (*models.GenerationRequest, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.New("invalid multipart form")
	}

	req := &models.GenerationRequest{
		Background: models.Background(r.FormValue("background")),
		Voice:      r.FormValue("voice"),
		Title:      r.FormValue("title"),
		Body:       r.FormValue("story_text"),
		Product:    r.FormValue("product"),
		Username:   r.FormValue("username"),
	}

	if rawUserID := r.FormValue("user_id"); rawUserID != "" {
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			return nil, errors.New("invalid user_id")
		}
		req.UserID = &userID
	}

	file, header, err := r.FormFile("profile_picture")
	if err == nil {
		defer file.Close()

		ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
		if ext == "" {
			ext = "png"
		}
		path, err := h.storage.SaveUpload(file, "profile", ext)
		if err != nil {
			return nil, errors.New("failed to save profile picture")
		}
		req.ProfileImagePath = path
	}

	return req, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput marks requests rejected before any pipeline work starts.
var ErrInvalidInput = errors.New("invalid input")

// Enums
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Background choices map to source video files under the backgrounds directory.
type Background string

const (
	BackgroundSubwaySurfers Background = "subway-surfers"
	BackgroundGTA           Background = "gta"
	BackgroundMinecraft     Background = "minecraft"
)

// Filename returns the source video filename for a background choice,
// or "" when the choice is unknown.
func (b Background) Filename() string {
	switch b {
	case BackgroundSubwaySurfers:
		return "subway-surfers.mp4"
	case BackgroundGTA:
		return "gta-video.mp4"
	case BackgroundMinecraft:
		return "minecraft.mp4"
	default:
		return ""
	}
}

// Voices supported by the speech synthesis provider.
var validVoices = map[string]bool{
	"alloy":   true,
	"echo":    true,
	"fable":   true,
	"onyx":    true,
	"nova":    true,
	"shimmer": true,
}

func IsValidVoice(voice string) bool {
	return validVoices[voice]
}

// Models

type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Story is one scraped (and optionally rewritten) forum story.
// RewrittenBody is set once by the rewriter and read-only afterward.
type Story struct {
	ID            uuid.UUID  `json:"id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	RewrittenBody *string    `json:"rewritten_body,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SubtitleCue is a single caption display window: up to three words shown
// over [Start, End) seconds of the story narration.
type SubtitleCue struct {
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Words []string `json:"words"`
}

// Text returns the cue's words joined for display.
func (c SubtitleCue) Text() string {
	return strings.Join(c.Words, " ")
}

// OverlayCard holds the title-screen graphic inputs, built once per job.
type OverlayCard struct {
	TitleText        string
	Username         string
	ProfileImagePath string
}

// GenerationRequest is one end-to-end video job: story text plus the
// creative choices from the /generate form.
type GenerationRequest struct {
	Background       Background `json:"background"`
	Voice            string     `json:"voice"`
	Title            string     `json:"title"`
	Body             string     `json:"body"`
	Product          string     `json:"product"`
	Username         string     `json:"username"`
	ProfileImagePath string     `json:"profile_image_path"`
	UserID           *uuid.UUID `json:"user_id,omitempty"`
}

// Validate checks the required job fields before any pipeline work.
func (r *GenerationRequest) Validate() error {
	var missing []string
	if r.Background.Filename() == "" {
		missing = append(missing, "background")
	}
	if !IsValidVoice(r.Voice) {
		missing = append(missing, "voice")
	}
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Body) == "" {
		missing = append(missing, "body")
	}
	if strings.TrimSpace(r.Product) == "" {
		missing = append(missing, "product")
	}
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "username")
	}
	if r.ProfileImagePath == "" {
		missing = append(missing, "profile_picture")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// MissingFieldsError lists the absent required job fields.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return ErrInvalidInput }

// GenerationResult is the final artifact set for a completed job.
// The degraded flags distinguish "rendered, but a recoverable step fell
// back" from full success — callers can assert on them without treating
// the job as failed.
type GenerationResult struct {
	FinalBody         string `json:"full_story"`
	Title             string `json:"title"`
	TitleAudioPath    string `json:"title_audio_path"`
	StoryAudioPath    string `json:"story_audio_path"`
	VideoURL          string `json:"video_url"`
	RewriteDegraded   bool   `json:"rewrite_degraded,omitempty"`
	SubtitlesDegraded bool   `json:"subtitles_degraded,omitempty"`
}

// JobRecord is the queue-side status record for an async generation job.
type JobRecord struct {
	ID         uuid.UUID         `json:"id"`
	Status     JobStatus         `json:"status"`
	Result     *GenerationResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// DTOs for API responses

type StoryResponse struct {
	Title string `json:"title"`
	Body  string `json:"story_text"`
}

type RewriteRequest struct {
	Body    string `json:"story"`
	Product string `json:"product"`
}

type RewriteResponse struct {
	RewrittenBody string `json:"modified_story"`
	Degraded      bool   `json:"degraded,omitempty"`
}

type CreateJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

// UpsertUserRequest is the "login or register" payload. With an ID the row
// is upserted in place; without one the email decides between returning the
// existing account and creating a new one.
type UpsertUserRequest struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Email       string     `json:"email"`
	DisplayName *string    `json:"display_name,omitempty"`
}

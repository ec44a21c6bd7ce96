package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobarin/storyreel/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueGenerateVideo = "queue:generate_video"

	jobKeyPrefix = "job:"
	jobRecordTTL = 24 * time.Hour
)

type Queue struct {
	client *redis.Client
}

// Job is one queued generation request.
type Job struct {
	ID        uuid.UUID                `json:"id"`
	Request   models.GenerationRequest `json:"request"`
	CreatedAt time.Time                `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueGenerate queues a generation request and writes its initial status
// record. Returns the new job ID.
func (q *Queue) EnqueueGenerate(ctx context.Context, req models.GenerationRequest) (uuid.UUID, error) {
	job := &Job{
		ID:        uuid.New(),
		Request:   req,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	record := &models.JobRecord{
		ID:        job.ID,
		Status:    models.JobStatusQueued,
		CreatedAt: job.CreatedAt,
	}
	if err := q.SetJobRecord(ctx, record); err != nil {
		return uuid.Nil, err
	}

	if err := q.client.RPush(ctx, QueueGenerateVideo, data).Err(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return job.ID, nil
}

// Dequeue blocks up to timeout for the next generation job.
// Returns (nil, nil) when the queue stayed empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueGenerateVideo).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// SetJobRecord stores a job's status record with a TTL.
func (q *Queue) SetJobRecord(ctx context.Context, record *models.JobRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	if err := q.client.Set(ctx, jobKeyPrefix+record.ID.String(), data, jobRecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job record: %w", err)
	}

	return nil
}

// GetJobRecord reads a job's status record. Returns nil when unknown or expired.
func (q *Queue) GetJobRecord(ctx context.Context, id uuid.UUID) (*models.JobRecord, error) {
	data, err := q.client.Get(ctx, jobKeyPrefix+id.String()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}

	var record models.JobRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
	}

	return &record, nil
}

func (q *Queue) GetQueueLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueGenerateVideo).Result()
}

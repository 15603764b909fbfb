package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskAttachmentsPurge deletes stored objects whose attachment rows are gone.
const TaskAttachmentsPurge = "attachments.purge"

// TaskSessionsCleanup deletes expired sessions.
const TaskSessionsCleanup = "sessions.cleanup"

// AttachmentsPurgePayload names the objects to remove from one bucket.
type AttachmentsPurgePayload struct {
	Bucket string   `json:"bucket"`
	Keys   []string `json:"keys"`
}

func NewAttachmentsPurgeTask(payload AttachmentsPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAttachmentsPurge, data), nil
}

func ParseAttachmentsPurgePayload(task *asynq.Task) (AttachmentsPurgePayload, error) {
	var payload AttachmentsPurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AttachmentsPurgePayload{}, err
	}
	return payload, nil
}

func NewSessionsCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskSessionsCleanup, nil)
}

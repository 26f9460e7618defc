// Package dispatch schedules due sequence steps into the task queue and
// works them off: the scheduler materializes dispatch jobs from step slots
// and enqueues asynq tasks; the worker sends the email exactly once per
// step and records the outcome.
package dispatch

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSendStep = "dispatch.send_step"

type SendStepPayload struct {
	JobID string `json:"jobId"`
}

func NewSendStepTask(payload SendStepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendStep, data), nil
}

func ParseSendStepPayload(task *asynq.Task) (SendStepPayload, error) {
	var payload SendStepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SendStepPayload{}, err
	}
	return payload, nil
}

package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskSLACycle fans the evaluation cycle out into per-booking tasks.
const TaskSLACycle = "sla.cycle"

// TaskSLAEvaluateBooking evaluates one booking.
const TaskSLAEvaluateBooking = "sla.evaluate_booking"

// SLAEvaluateBookingPayload identifies the booking to evaluate. It carries
// nothing else so asynq.Unique treats repeat enqueues as duplicates.
type SLAEvaluateBookingPayload struct {
	BookingID string `json:"bookingId"`
}

func NewSLACycleTask() *asynq.Task {
	return asynq.NewTask(TaskSLACycle, nil)
}

func NewSLAEvaluateBookingTask(payload SLAEvaluateBookingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSLAEvaluateBooking, data), nil
}

func ParseSLAEvaluateBookingPayload(task *asynq.Task) (SLAEvaluateBookingPayload, error) {
	var payload SLAEvaluateBookingPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SLAEvaluateBookingPayload{}, err
	}
	return payload, nil
}

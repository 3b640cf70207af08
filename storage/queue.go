package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// StatusQueue carries board status writes to the processor.
type StatusQueue struct {
	queue *azqueue.QueueClient
}

// QueuedStatus is a dequeued status change plus the handles needed to delete it.
type QueuedStatus struct {
	StatusChange
	MessageID  string
	PopReceipt string
}

// NewStatusQueue connects to the named queue.
func NewStatusQueue(connStr, name string) (*StatusQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
	if err != nil {
		return nil, err
	}
	return &StatusQueue{queue: q}, nil
}

// PushStatus enqueues one status change.
func (q *StatusQueue) PushStatus(ctx context.Context, ch StatusChange) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	_, err = q.queue.EnqueueMessage(ctx, string(payload), nil)
	return err
}

// Dequeue retrieves a single message, or nil when the queue is empty.
// Messages with an undecodable body are returned with an empty TaskID so the
// caller can delete them.
func (q *StatusQueue) Dequeue(ctx context.Context) (*QueuedStatus, error) {
	resp, err := q.queue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	out := &QueuedStatus{}
	if msg.MessageID != nil {
		out.MessageID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		out.PopReceipt = *msg.PopReceipt
	}
	if msg.MessageText != nil {
		if err := json.Unmarshal([]byte(*msg.MessageText), &out.StatusChange); err != nil {
			out.StatusChange = StatusChange{}
		}
	}
	return out, nil
}

// Delete removes a processed message from the queue.
func (q *StatusQueue) Delete(ctx context.Context, id, receipt string) error {
	_, err := q.queue.DeleteMessage(ctx, id, receipt, nil)
	return err
}

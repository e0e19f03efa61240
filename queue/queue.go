// Package queue implements the priority admission queue holding pending
// generation requests until the dispatcher claims them.
//
// Requests are held in per-priority buckets (high, normal, low), each FIFO
// internally. Pop always drains the highest non-empty bucket, so insert is
// O(1) with no reshuffling. Ordering applies only to requests still in the
// queue: a job that has already been dispatched is never preempted by a
// later higher-priority arrival.
package queue

import (
	"sync"

	"github.com/almlog/ai-dynamic-painting-sub000/id"
	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Queue is a three-bucket priority FIFO. It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	buckets [3][]*job.Request // indexed by job.Priority
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// bucketOrder is the drain order: highest priority first.
var bucketOrder = [3]job.Priority{job.PriorityHigh, job.PriorityNormal, job.PriorityLow}

// Push appends the request to the tail of its priority bucket.
func (q *Queue) Push(req *job.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buckets[req.Priority] = append(q.buckets[req.Priority], req)
}

// Pop removes and returns the head of the highest non-empty bucket.
// Returns nil when the queue is empty.
func (q *Queue) Pop() *job.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range bucketOrder {
		bucket := q.buckets[p]
		if len(bucket) == 0 {
			continue
		}
		req := bucket[0]
		q.buckets[p] = bucket[1:]
		return req
	}
	return nil
}

// Peek returns the request Pop would return, without removing it.
func (q *Queue) Peek() *job.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range bucketOrder {
		if bucket := q.buckets[p]; len(bucket) > 0 {
			return bucket[0]
		}
	}
	return nil
}

// Remove deletes the request with the given ID from whichever bucket holds
// it. Returns the removed request, or nil if the ID is not queued (it may
// already have been dispatched). Cancelling a queued job is a pure removal
// with no side effects.
func (q *Queue) Remove(reqID id.RequestID) *job.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range bucketOrder {
		bucket := q.buckets[p]
		for i, req := range bucket {
			if req.ID == reqID {
				q.buckets[p] = append(bucket[:i:i], bucket[i+1:]...)
				return req
			}
		}
	}
	return nil
}

// Len returns the total number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, bucket := range q.buckets {
		n += len(bucket)
	}
	return n
}

// LenByPriority returns the number of queued requests in one bucket.
func (q *Queue) LenByPriority(p job.Priority) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buckets[p])
}

// Package mock provides a test double implementation of graphmem.Client.
//
// The mock records every submission with a timestamp, supports scripted
// per-episode failures, and tracks in-flight concurrency so tests can assert
// ordering and isolation properties without a live backend.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pdplatform/graphload/graphmem"
)

// Submission is one recorded Submit call.
type Submission struct {
	Request graphmem.SubmitRequest
	At      time.Time
	// Err is the error the mock returned for this call, nil on success.
	Err error
}

// Client is a test double for graphmem.Client.
// It allows custom behavior injection via function fields and records all
// calls for later assertions. Safe for concurrent use.
type Client struct {
	// SubmitFunc is called by Submit if set, after recording the call.
	// If nil, Submit consumes any scripted failure and otherwise succeeds.
	SubmitFunc func(ctx context.Context, req graphmem.SubmitRequest) error

	// SubjectExistsFunc is called by SubjectExists if set.
	// If nil, the mock reports true when any successful submission name
	// contains the subject key.
	SubjectExistsFunc func(ctx context.Context, groupID, subjectKey string) (bool, error)

	// CountsFunc is called by Counts if set.
	// If nil, the mock reports one entity per successful submission.
	CountsFunc func(ctx context.Context, groupID string) (graphmem.Counts, error)

	// SubmitDelay, when nonzero, makes each Submit sleep before returning.
	// Useful for widening race windows in concurrency tests.
	SubmitDelay time.Duration

	mu          sync.Mutex
	submissions []Submission
	scripted    map[string][]error
	inFlight    int
	maxInFlight int
	closed      bool
}

var _ graphmem.Client = (*Client)(nil)

// NewClient creates a mock client that accepts every submission.
func NewClient() *Client {
	return &Client{scripted: make(map[string][]error)}
}

// ScriptFailures queues errors to return for submissions of the named
// episode, one per call, in order. Once the queue drains, submissions of
// that episode succeed.
func (c *Client) ScriptFailures(name string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripted[name] = append(c.scripted[name], errs...)
}

// Submit records the call and returns the next scripted failure for the
// episode, if any.
func (c *Client) Submit(ctx context.Context, req graphmem.SubmitRequest) error {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	c.mu.Unlock()

	if c.SubmitDelay > 0 {
		select {
		case <-time.After(c.SubmitDelay):
		case <-ctx.Done():
		}
	}

	var err error
	switch {
	case ctx.Err() != nil:
		err = graphmem.Transient(ctx.Err())
	case c.SubmitFunc != nil:
		err = c.SubmitFunc(ctx, req)
	default:
		err = c.nextScripted(req.Name)
	}

	c.mu.Lock()
	c.inFlight--
	c.submissions = append(c.submissions, Submission{Request: req, At: time.Now(), Err: err})
	c.mu.Unlock()
	return err
}

func (c *Client) nextScripted(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.scripted[name]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	c.scripted[name] = queue[1:]
	return err
}

// SubjectExists reports whether a successful submission mentioning the
// subject key was recorded, unless SubjectExistsFunc overrides it.
func (c *Client) SubjectExists(ctx context.Context, groupID, subjectKey string) (bool, error) {
	if c.SubjectExistsFunc != nil {
		return c.SubjectExistsFunc(ctx, groupID, subjectKey)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.submissions {
		if s.Err == nil && s.Request.GroupID == groupID && strings.Contains(s.Request.Name, subjectKey) {
			return true, nil
		}
	}
	return false, nil
}

// Counts reports one entity per successful submission in the group, unless
// CountsFunc overrides it.
func (c *Client) Counts(ctx context.Context, groupID string) (graphmem.Counts, error) {
	if c.CountsFunc != nil {
		return c.CountsFunc(ctx, groupID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, s := range c.submissions {
		if s.Err == nil && s.Request.GroupID == groupID {
			n++
		}
	}
	return graphmem.Counts{Entities: n, Edges: n}, nil
}

// Close marks the mock closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Submissions returns a copy of all recorded Submit calls in call order.
func (c *Client) Submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Submission, len(c.submissions))
	copy(out, c.submissions)
	return out
}

// SuccessNames returns the names of all successful submissions in call order.
func (c *Client) SuccessNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for _, s := range c.submissions {
		if s.Err == nil {
			names = append(names, s.Request.Name)
		}
	}
	return names
}

// SubmitCount returns the total number of Submit calls, including failures.
func (c *Client) SubmitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submissions)
}

// MaxInFlight returns the peak number of concurrent Submit calls observed.
func (c *Client) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

// Reset clears all recorded calls, scripts, and injected behavior.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submissions = nil
	c.scripted = make(map[string][]error)
	c.maxInFlight = 0
	c.SubmitFunc = nil
	c.SubjectExistsFunc = nil
	c.CountsFunc = nil
}

// Copyright 2025 The PD Discovery Platform Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package graphiti implements the graphmem.Client interface against a
// Graphiti-style graph-memory HTTP service.
package graphiti

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/pdplatform/graphload/graphmem"
)

type submitPayload struct {
	Name              string `json:"name"`
	EpisodeBody       string `json:"episode_body"`
	Source            string `json:"source"`
	SourceDescription string `json:"source_description"`
	GroupID           string `json:"group_id"`
}

type submitResponse struct {
	Message string `json:"message"`
}

type serviceError struct {
	Detail string `json:"detail"`
}

type subjectResponse struct {
	Exists bool `json:"exists"`
}

type statsResponse struct {
	EntityCount int64 `json:"entity_count"`
	EdgeCount   int64 `json:"edge_count"`
}

// Client talks to a Graphiti-style graph-memory service over HTTP.
type Client struct {
	http *resty.Client
}

var _ graphmem.Client = (*Client)(nil)

// NewClient creates a graphiti HTTP client from the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Client{http: httpClient}, nil
}

// Submit sends one episode to the service for ingestion. The service
// extracts entities and relations synchronously, so a single call can take
// tens of seconds for large bodies.
func (c *Client) Submit(ctx context.Context, req graphmem.SubmitRequest) error {
	payload := submitPayload{
		Name:              req.Name,
		EpisodeBody:       req.Body,
		Source:            req.Source,
		SourceDescription: req.SourceDescription,
		GroupID:           req.GroupID,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&submitResponse{}).
		SetError(&serviceError{}).
		Post("/episodes")
	if err != nil {
		return graphmem.Transient(fmt.Errorf("submit episode %q: %w", req.Name, err))
	}
	if resp.IsError() {
		return classifyStatus(resp, fmt.Sprintf("submit episode %q", req.Name))
	}
	return nil
}

// SubjectExists reports whether the service already holds any entity for the
// given subject key within a group.
func (c *Client) SubjectExists(ctx context.Context, groupID, subjectKey string) (bool, error) {
	var result subjectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("group_id", groupID).
		SetResult(&result).
		SetError(&serviceError{}).
		Get("/subjects/" + subjectKey)
	if err != nil {
		return false, graphmem.Transient(fmt.Errorf("query subject %q: %w", subjectKey, err))
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, classifyStatus(resp, fmt.Sprintf("query subject %q", subjectKey))
	}
	return result.Exists, nil
}

// Counts returns coarse entity and edge totals for a group.
func (c *Client) Counts(ctx context.Context, groupID string) (graphmem.Counts, error) {
	var result statsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("group_id", groupID).
		SetResult(&result).
		SetError(&serviceError{}).
		Get("/stats")
	if err != nil {
		return graphmem.Counts{}, graphmem.Transient(fmt.Errorf("query stats: %w", err))
	}
	if resp.IsError() {
		return graphmem.Counts{}, classifyStatus(resp, "query stats")
	}
	return graphmem.Counts{Entities: result.EntityCount, Edges: result.EdgeCount}, nil
}

// Close releases client resources. The underlying HTTP client holds no
// long-lived connections beyond the keepalive pool, so this is a no-op.
func (c *Client) Close() error {
	return nil
}

// classifyStatus turns an HTTP error response into a transient or permanent
// error. Rate limiting and server faults are retryable, request rejections
// are not.
func classifyStatus(resp *resty.Response, op string) error {
	detail := resp.Status()
	if svcErr, ok := resp.Error().(*serviceError); ok && svcErr.Detail != "" {
		detail = fmt.Sprintf("%s: %s", resp.Status(), svcErr.Detail)
	}
	err := fmt.Errorf("%s: %s", op, detail)

	code := resp.StatusCode()
	switch {
	case code == http.StatusTooManyRequests:
		return graphmem.Transient(err)
	case code >= 500:
		return graphmem.Transient(err)
	default:
		return graphmem.Permanent(err)
	}
}

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xraph/stepwise/api"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// ListOptions filters ListWorkflows. The owner comes from WithOwner.
type ListOptions struct {
	SkillType string
	Status    workflow.Status
	Limit     int
	Offset    int
}

func workflowPath(workflowID id.WorkflowID) string {
	return "/v1/workflows/" + workflowID.String()
}

// Skills lists the registered skill types.
func (c *Client) Skills(ctx context.Context) ([]api.SkillSummary, error) {
	var resp api.ListSkillsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/skills", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Skills, nil
}

// CreateWorkflow materializes a new workflow instance.
func (c *Client) CreateWorkflow(ctx context.Context, req api.CreateWorkflowRequest) (*workflow.Instance, error) {
	var wf workflow.Instance
	if err := c.do(ctx, http.MethodPost, "/v1/workflows", req, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetWorkflow retrieves a workflow instance by ID.
func (c *Client) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	var wf workflow.Instance
	if err := c.do(ctx, http.MethodGet, workflowPath(workflowID), nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows lists the owner's workflow instances.
func (c *Client) ListWorkflows(ctx context.Context, opts ListOptions) ([]*workflow.Instance, error) {
	q := url.Values{}
	if opts.SkillType != "" {
		q.Set("skill_type", opts.SkillType)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/v1/workflows"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list []*workflow.Instance
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// StartWorkflow moves a not-started instance to in progress.
func (c *Client) StartWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	return c.lifecycle(ctx, workflowID, "start", nil)
}

// PauseWorkflow pauses an in-progress instance.
func (c *Client) PauseWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	return c.lifecycle(ctx, workflowID, "pause", nil)
}

// ResumeWorkflow resumes a paused instance.
func (c *Client) ResumeWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	return c.lifecycle(ctx, workflowID, "resume", nil)
}

// FailWorkflow marks an instance failed with reason.
func (c *Client) FailWorkflow(ctx context.Context, workflowID id.WorkflowID, reason string) (*workflow.Instance, error) {
	return c.lifecycle(ctx, workflowID, "fail", api.ReasonRequest{Reason: reason})
}

// AdvanceWorkflow re-derives the step pointer from the step statuses.
func (c *Client) AdvanceWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	return c.lifecycle(ctx, workflowID, "advance", nil)
}

func (c *Client) lifecycle(ctx context.Context, workflowID id.WorkflowID, action string, body any) (*workflow.Instance, error) {
	var wf workflow.Instance
	if err := c.do(ctx, http.MethodPost, workflowPath(workflowID)+"/"+action, body, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// UpdateWorkflowData shallow-merges partial into the workflow data.
func (c *Client) UpdateWorkflowData(ctx context.Context, workflowID id.WorkflowID, partial map[string]any) (*workflow.Instance, error) {
	var wf workflow.Instance
	if err := c.do(ctx, http.MethodPatch, workflowPath(workflowID)+"/data", partial, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// DeleteWorkflow removes an instance with its steps and records.
func (c *Client) DeleteWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	return c.do(ctx, http.MethodDelete, workflowPath(workflowID), nil, nil)
}

// WorkflowValidations returns every validation record of a workflow.
func (c *Client) WorkflowValidations(ctx context.Context, workflowID id.WorkflowID) ([]*workflow.ValidationRecord, error) {
	var records []*workflow.ValidationRecord
	if err := c.do(ctx, http.MethodGet, workflowPath(workflowID)+"/validations", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

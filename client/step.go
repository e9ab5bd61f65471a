package client

import (
	"context"
	"net/http"

	"github.com/xraph/stepwise/api"
	"github.com/xraph/stepwise/engine"
	"github.com/xraph/stepwise/guidance"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/validator"
	"github.com/xraph/stepwise/workflow"
)

func stepPath(workflowID id.WorkflowID, stepID id.StepID) string {
	return workflowPath(workflowID) + "/steps/" + stepID.String()
}

// Steps returns a workflow's steps in step-number order.
func (c *Client) Steps(ctx context.Context, workflowID id.WorkflowID) ([]*workflow.Step, error) {
	var steps []*workflow.Step
	if err := c.do(ctx, http.MethodGet, workflowPath(workflowID)+"/steps", nil, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// Step returns one step.
func (c *Client) Step(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Step, error) {
	var s workflow.Step
	if err := c.do(ctx, http.MethodGet, stepPath(workflowID, stepID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CompleteStep submits payload for the current step. A rejected payload
// returns an *Error with status 422 whose Problem lists the failures.
func (c *Client) CompleteStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, payload map[string]any) (*engine.StepResult, error) {
	var res engine.StepResult
	if err := c.do(ctx, http.MethodPost, stepPath(workflowID, stepID)+"/complete", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateStep dry-runs the step rules. A nil payload validates the saved
// step data.
func (c *Client) ValidateStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, payload map[string]any) (*validator.Result, error) {
	var body any
	if payload != nil {
		body = payload
	}
	var res validator.Result
	if err := c.do(ctx, http.MethodPost, stepPath(workflowID, stepID)+"/validate", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveStepDraft stores partial step data without validating it.
func (c *Client) SaveStepDraft(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, data map[string]any) (*workflow.Step, error) {
	var s workflow.Step
	if err := c.do(ctx, http.MethodPut, stepPath(workflowID, stepID)+"/draft", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SkipStep skips an optional current step.
func (c *Client) SkipStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, reason string) (*engine.StepResult, error) {
	var res engine.StepResult
	if err := c.do(ctx, http.MethodPost, stepPath(workflowID, stepID)+"/skip", api.ReasonRequest{Reason: reason}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StepGuidance returns the guidance payload for a step.
func (c *Client) StepGuidance(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*guidance.Result, error) {
	var g guidance.Result
	if err := c.do(ctx, http.MethodGet, stepPath(workflowID, stepID)+"/guidance", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// StepValidations returns the validation records of one step.
func (c *Client) StepValidations(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) ([]*workflow.ValidationRecord, error) {
	var records []*workflow.ValidationRecord
	if err := c.do(ctx, http.MethodGet, stepPath(workflowID, stepID)+"/validations", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

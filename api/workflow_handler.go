package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xraph/stepwise/engine"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/scope"
	"github.com/xraph/stepwise/workflow"
)

func (a *API) listSkills(c echo.Context) error {
	defs := a.eng.Registry().All()
	resp := ListSkillsResponse{Skills: make([]SkillSummary, 0, len(defs))}
	for _, d := range defs {
		resp.Skills = append(resp.Skills, SkillSummary{
			SkillType:   d.SkillType,
			Name:        d.Name,
			Version:     d.Version,
			Description: d.Description,
			Phases:      len(d.Phases),
			Steps:       d.StepCount(),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *API) createWorkflow(c echo.Context) error {
	var req CreateWorkflowRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if req.SkillType == "" && req.Definition == nil {
		return badRequest("skill_type is required")
	}

	ctx := c.Request().Context()
	owner, _ := scope.Owner(ctx)
	if req.OwnerID != "" && req.OwnerID != owner {
		return &problemError{status: http.StatusForbidden, title: "Forbidden", detail: "owner_id does not match " + OwnerHeader}
	}

	wf, err := a.eng.CreateWorkflow(ctx, engine.CreateInput{
		OwnerID:    owner,
		SkillType:  req.SkillType,
		Name:       req.Name,
		Definition: req.Definition,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wf)
}

func (a *API) listWorkflows(c echo.Context) error {
	var (
		skillType, status string
		opts              workflow.ListOpts
	)
	if err := echo.QueryParamsBinder(c).
		String("skill_type", &skillType).
		String("status", &status).
		Int("limit", &opts.Limit).
		Int("offset", &opts.Offset).
		BindError(); err != nil {
		return badRequest(err.Error())
	}
	opts.SkillType = skillType
	if status != "" {
		opts.Status = workflow.Status(status)
		if !opts.Status.Valid() {
			return badRequest("unknown status " + status)
		}
	}

	owner, _ := scope.Owner(c.Request().Context())
	list, err := a.eng.ListWorkflows(c.Request().Context(), owner, opts)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*workflow.Instance{}
	}
	return c.JSON(http.StatusOK, list)
}

func (a *API) getWorkflow(c echo.Context) error {
	wfID, err := workflowID(c)
	if err != nil {
		return err
	}
	wf, err := a.eng.GetWorkflow(c.Request().Context(), wfID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (a *API) deleteWorkflow(c echo.Context) error {
	wfID, err := workflowID(c)
	if err != nil {
		return err
	}
	if err := a.eng.DeleteWorkflow(c.Request().Context(), wfID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) startWorkflow(c echo.Context) error { return a.lifecycle(c, a.eng.StartWorkflow) }
func (a *API) pauseWorkflow(c echo.Context) error { return a.lifecycle(c, a.eng.PauseWorkflow) }
func (a *API) resumeWorkflow(c echo.Context) error { return a.lifecycle(c, a.eng.ResumeWorkflow) }
func (a *API) advanceWorkflow(c echo.Context) error { return a.lifecycle(c, a.eng.AdvanceWorkflow) }

func (a *API) lifecycle(c echo.Context, fn func(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error)) error {
	wfID, err := workflowID(c)
	if err != nil {
		return err
	}
	wf, err := fn(c.Request().Context(), wfID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (a *API) failWorkflow(c echo.Context) error {
	wfID, err := workflowID(c)
	if err != nil {
		return err
	}
	var req ReasonRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	wf, err := a.eng.FailWorkflow(c.Request().Context(), wfID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (a *API) updateWorkflowData(c echo.Context) error {
	wfID, err := workflowID(c)
	if err != nil {
		return err
	}
	var partial map[string]any
	if err := bindBody(c, &partial); err != nil {
		return err
	}
	if len(partial) == 0 {
		return badRequest("request body must be a non-empty object")
	}
	wf, err := a.eng.UpdateWorkflowData(c.Request().Context(), wfID, partial)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (a *API) listWorkflowValidations(c echo.Context) error {
	wfID, err := workflowID(c)
	if err != nil {
		return err
	}
	recs, err := a.eng.ListValidationRecords(c.Request().Context(), wfID, id.Nil)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []*workflow.ValidationRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

// ── Helpers ─────────────────────────────────────────

func workflowID(c echo.Context) (id.WorkflowID, error) {
	wfID, err := id.ParseWorkflowID(c.Param("id"))
	if err != nil {
		return id.Nil, badRequest("invalid workflow ID: " + err.Error())
	}
	return wfID, nil
}

func stepID(c echo.Context) (id.StepID, error) {
	sID, err := id.ParseStepID(c.Param("stepId"))
	if err != nil {
		return id.Nil, badRequest("invalid step ID: " + err.Error())
	}
	return sID, nil
}

// bindBody decodes only the request body. echo's Bind would also copy
// path parameters into map targets.
func bindBody(c echo.Context, v any) error {
	if err := new(echo.DefaultBinder).BindBody(c, v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

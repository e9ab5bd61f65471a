package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

func (a *API) listSteps(c echo.Context) error {
	wfID, err := workflowID(c)
	if err != nil {
		return err
	}
	steps, err := a.eng.GetWorkflowSteps(c.Request().Context(), wfID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, steps)
}

func (a *API) getStep(c echo.Context) error {
	wfID, sID, err := stepParams(c)
	if err != nil {
		return err
	}
	s, err := a.eng.GetStep(c.Request().Context(), wfID, sID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (a *API) completeStep(c echo.Context) error {
	wfID, sID, err := stepParams(c)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := bindBody(c, &payload); err != nil {
		return err
	}
	res, err := a.eng.CompleteStep(c.Request().Context(), wfID, sID, payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// validateStep checks a payload without changing state. An empty body
// validates the data already saved on the step.
func (a *API) validateStep(c echo.Context) error {
	wfID, sID, err := stepParams(c)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := bindBody(c, &payload); err != nil {
		return err
	}
	res, err := a.eng.ValidateStep(c.Request().Context(), wfID, sID, payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (a *API) saveStepDraft(c echo.Context) error {
	wfID, sID, err := stepParams(c)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := bindBody(c, &payload); err != nil {
		return err
	}
	s, err := a.eng.SaveStepDraft(c.Request().Context(), wfID, sID, payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (a *API) skipStep(c echo.Context) error {
	wfID, sID, err := stepParams(c)
	if err != nil {
		return err
	}
	var req ReasonRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	res, err := a.eng.SkipStep(c.Request().Context(), wfID, sID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (a *API) stepGuidance(c echo.Context) error {
	wfID, sID, err := stepParams(c)
	if err != nil {
		return err
	}
	g, err := a.eng.GetStepGuidance(c.Request().Context(), wfID, sID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

func (a *API) listStepValidations(c echo.Context) error {
	wfID, sID, err := stepParams(c)
	if err != nil {
		return err
	}
	recs, err := a.eng.ListValidationRecords(c.Request().Context(), wfID, sID)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []*workflow.ValidationRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

func stepParams(c echo.Context) (id.WorkflowID, id.StepID, error) {
	wfID, err := workflowID(c)
	if err != nil {
		return id.Nil, id.Nil, err
	}
	sID, err := stepID(c)
	if err != nil {
		return id.Nil, id.Nil, err
	}
	return wfID, sID, nil
}

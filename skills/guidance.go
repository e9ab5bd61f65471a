package skills

import (
	"context"

	"github.com/xraph/stepwise/guidance"
)

// fundingRange covers the funding phase of venture_development.
var fundingRange = guidance.Range{From: 17, To: 20}

// stageAdvice is appended to funding-phase guidance by venture stage.
var stageAdvice = map[string][]string{
	"pre_seed": {
		"Angels and pre-seed funds invest in the team; lead with founder fit.",
		"Raise enough for 18 months to reach validated traction.",
	},
	"seed": {
		"Seed investors expect early revenue or strong usage signals.",
		"Show the unit economics from step 11 on one slide.",
	},
	"series_a": {
		"Series A needs a repeatable acquisition channel; show cohort data.",
		"Expect diligence on the financial model in step 17.",
	},
}

// fundingCoach serves the static guidance of the funding phase and adds
// recommendations for the stage stored on the workflow.
func fundingCoach(static guidance.Handler) guidance.Handler {
	return guidance.HandlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Result, error) {
		res, err := static.Guide(ctx, req)
		if err != nil {
			return res, err
		}
		stage, _ := req.Data["stage"].(string)
		res.Recommendations = append(res.Recommendations, stageAdvice[stage]...)
		return res, nil
	})
}

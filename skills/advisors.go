package skills

import (
	"fmt"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/validator"
)

// ventureAdvisor flags numbers that pass the rules but look optimistic.
func ventureAdvisor(sc validator.StepContext) []stepwise.Issue {
	var out []stepwise.Issue
	switch sc.StepNumber {
	case 5:
		sam, okS := number(sc.Data, "sam")
		som, okO := number(sc.Data, "som")
		if okS && okO && sam > 0 && som/sam > 0.1 {
			out = append(out, stepwise.Issue{
				Field:   "som",
				Rule:    "som_share",
				Message: fmt.Sprintf("SOM is %.0f%% of SAM; above 10%% needs strong evidence", 100*som/sam),
			})
		}
	case 7:
		if n, ok := number(sc.Data, "interviews"); ok && n < 20 {
			out = append(out, stepwise.Issue{
				Field:   "interviews",
				Rule:    "interview_depth",
				Message: "fewer than 20 interviews rarely reveal a pattern",
			})
		}
	case 11:
		if m, ok := number(sc.Data, "payback_months"); ok && m > 18 {
			out = append(out, stepwise.Issue{
				Field:   "payback_months",
				Rule:    "cac_payback",
				Message: fmt.Sprintf("CAC payback of %.0f months is longer than 18", m),
			})
		}
	}
	return out
}

// diligenceAdvisor warns when the deal size recorded on the workflow is
// large relative to the evidence collected.
func diligenceAdvisor(sc validator.StepContext) []stepwise.Issue {
	if sc.StepNumber != 3 {
		return nil
	}
	size, ok := number(sc.WorkflowData, "deal_size")
	if !ok || size < 10_000_000 {
		return nil
	}
	years, ok := number(sc.Data, "statement_years")
	if list, isList := sc.Data["statement_years"].([]any); isList {
		years, ok = float64(len(list)), true
	}
	if !ok || years < 5 {
		return []stepwise.Issue{{
			Field:   "statement_years",
			Rule:    "deal_size_history",
			Message: "deals above 10M usually review five years of statements",
		}}
	}
	return nil
}

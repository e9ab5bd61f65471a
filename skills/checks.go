package skills

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xraph/stepwise/validator"
)

// Checks returns the custom checks referenced by the built-in definitions.
func Checks() map[string]validator.CheckFunc {
	return map[string]validator.CheckFunc{
		"market_funnel":          marketFunnel,
		"unique_entries":         uniqueEntries,
		"ltv_cac_ratio":          ltvCacRatio,
		"allocation_sums_to_100": allocationSumsTo100,
		"chronological":          chronological,
	}
}

// minLTVToCAC is the lowest lifetime-value to acquisition-cost ratio
// accepted by the unit economics step.
const minLTVToCAC = 3.0

func marketFunnel(_ any, sc validator.StepContext) error {
	tam, okT := number(sc.Data, "tam")
	sam, okS := number(sc.Data, "sam")
	if !okT || !okS {
		return errors.New("tam and sam must be numbers")
	}
	if sam > tam {
		return fmt.Errorf("sam (%g) exceeds tam (%g)", sam, tam)
	}
	if som, ok := number(sc.Data, "som"); ok && som > sam {
		return fmt.Errorf("som (%g) exceeds sam (%g)", som, sam)
	}
	return nil
}

// uniqueEntries fails when a list holds the same entry twice. Strings are
// compared case-insensitively; objects by their "name" or "email" key.
func uniqueEntries(value any, _ validator.StepContext) error {
	items, ok := value.([]any)
	if !ok {
		if value == nil {
			return nil
		}
		return errors.New("expected a list")
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := entryKey(item)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%q is listed more than once", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func entryKey(item any) string {
	switch v := item.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case map[string]any:
		for _, k := range []string{"name", "email"} {
			if s, ok := v[k].(string); ok {
				return strings.ToLower(strings.TrimSpace(s))
			}
		}
	}
	return ""
}

func ltvCacRatio(_ any, sc validator.StepContext) error {
	ltv, okL := number(sc.Data, "ltv")
	cac, okC := number(sc.Data, "cac")
	if !okL || !okC {
		return errors.New("ltv and cac must be numbers")
	}
	if cac == 0 {
		return nil
	}
	if ratio := ltv / cac; ratio < minLTVToCAC {
		return fmt.Errorf("ltv/cac is %.1f, needs at least %.0f", ratio, minLTVToCAC)
	}
	return nil
}

// allocationSumsTo100 accepts either a map of label to percent or a list of
// objects with a "percent" key.
func allocationSumsTo100(value any, _ validator.StepContext) error {
	var total float64
	switch v := value.(type) {
	case nil:
		return errors.New("allocation is missing")
	case map[string]any:
		for k, p := range v {
			f, ok := validator.ToFloat(p)
			if !ok {
				return fmt.Errorf("%s: percent must be a number", k)
			}
			total += f
		}
	case []any:
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("entry %d: expected an object", i+1)
			}
			f, ok := validator.ToFloat(m["percent"])
			if !ok {
				return fmt.Errorf("entry %d: percent must be a number", i+1)
			}
			total += f
		}
	default:
		return errors.New("expected a map or a list")
	}

	if math.Abs(total-100) > 0.5 {
		return fmt.Errorf("allocations add up to %g%%", total)
	}
	return nil
}

// chronological requires a list of objects whose "date" keys are ordered.
func chronological(value any, _ validator.StepContext) error {
	items, ok := value.([]any)
	if !ok {
		return errors.New("expected a list")
	}
	dates := make([]time.Time, 0, len(items))
	for i, item := range items {
		m, _ := item.(map[string]any)
		s, _ := m["date"].(string)
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return fmt.Errorf("entry %d: date must be YYYY-MM-DD", i+1)
		}
		dates = append(dates, d)
	}
	if !sort.SliceIsSorted(dates, func(i, j int) bool { return dates[i].Before(dates[j]) }) {
		return errors.New("milestones are not in date order")
	}
	return nil
}

func number(data map[string]any, field string) (float64, bool) {
	v, ok := validator.Lookup(data, field)
	if !ok {
		return 0, false
	}
	return validator.ToFloat(v)
}

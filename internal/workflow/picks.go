package workflow

import (
	"fmt"
	"sort"

	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"
)

type pickFunc func(candidates []store.Ownership) ([]store.Ownership, error)

// explicitInputs keeps the requested ids that are among the candidates, in request order.
func explicitInputs(candidates []store.Ownership, ids []string) ([]store.Ownership, error) {
	byID := make(map[string]store.Ownership, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	seen := make(map[string]bool, len(ids))
	out := make([]store.Ownership, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate input %s", rewards.ErrInvalidRequest, id)
		}
		seen[id] = true
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// pickN takes need inputs: the requested ones if ids is set, otherwise the oldest candidates.
func pickN(need int, ids []string) pickFunc {
	return func(candidates []store.Ownership) ([]store.Ownership, error) {
		if len(ids) > need {
			return nil, fmt.Errorf("%w: %d inputs given, %d required", rewards.ErrInvalidRequest, len(ids), need)
		}
		pool := candidates
		if len(ids) > 0 {
			var err error
			if pool, err = explicitInputs(candidates, ids); err != nil {
				return nil, err
			}
		}
		if len(pool) < need {
			return nil, &rewards.InsufficientInputsError{Required: need, Available: len(pool)}
		}
		return pool[:need], nil
	}
}

// pickDistinctCategories takes one input from each of need different categories, preferring
// the oldest holding per category and the categories whose oldest holding is oldest.
// allCategories, when known, names what is missing on a shortfall.
func pickDistinctCategories(need int, ids []string, allCategories []string) pickFunc {
	return func(candidates []store.Ownership) ([]store.Ownership, error) {
		if len(ids) > need {
			return nil, fmt.Errorf("%w: %d inputs given, %d required", rewards.ErrInvalidRequest, len(ids), need)
		}
		pool := candidates
		if len(ids) > 0 {
			var err error
			if pool, err = explicitInputs(candidates, ids); err != nil {
				return nil, err
			}
		}
		covered := map[string]bool{}
		out := make([]store.Ownership, 0, need)
		for _, c := range pool {
			if covered[c.CategoryID] {
				if len(ids) > 0 {
					return nil, fmt.Errorf("%w: two inputs from category %s", rewards.ErrInvalidRequest, c.CategoryID)
				}
				continue
			}
			covered[c.CategoryID] = true
			out = append(out, c)
		}
		if len(out) < need {
			return nil, &rewards.InsufficientInputsError{
				Required:          need,
				Available:         len(out),
				MissingCategories: missing(allCategories, covered),
			}
		}
		return out[:need], nil
	}
}

func missing(all []string, covered map[string]bool) []string {
	var out []string
	for _, c := range all {
		if c != rewards.MasterCategoryID && !covered[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

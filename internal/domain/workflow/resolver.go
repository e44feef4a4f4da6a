package workflow

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ResolveCategory selects the workflow category for a request length. When
// configured ranges overlap, the candidate with the lowest minDays wins, so
// resolution stays deterministic regardless of input order.
func ResolveCategory(categories []WorkflowCategory, days decimal.Decimal) (WorkflowCategory, error) {
	sorted := make([]WorkflowCategory, len(categories))
	copy(sorted, categories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinDays.LessThan(sorted[j].MinDays)
	})

	for _, category := range sorted {
		if !category.IsActive {
			continue
		}
		if category.Contains(days) {
			return category, nil
		}
	}
	return WorkflowCategory{}, ErrNoCategoryMatch
}

// ResolveWorkflow selects the approval workflow for a request length under
// the same first-match, ascending-minDays discipline as ResolveCategory.
func ResolveWorkflow(workflows []ApprovalWorkflow, days decimal.Decimal) (ApprovalWorkflow, error) {
	sorted := make([]ApprovalWorkflow, len(workflows))
	copy(sorted, workflows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinDays.LessThan(sorted[j].MinDays)
	})

	for _, wf := range sorted {
		if !wf.IsActive || len(wf.ApprovalLevels) == 0 {
			continue
		}
		if wf.Contains(days) {
			return wf, nil
		}
	}
	return ApprovalWorkflow{}, ErrNoWorkflowMatch
}

// BuildPlan snapshots the resolved category and workflow into a step plan.
// The workflow's approvalLevels determine the step count; the category's
// maxSteps is display metadata only.
func BuildPlan(category WorkflowCategory, wf ApprovalWorkflow) StepPlan {
	steps := make([]PlanStep, 0, len(wf.ApprovalLevels))
	for i, role := range wf.ApprovalLevels {
		steps = append(steps, PlanStep{Level: i + 1, Role: role})
	}
	return StepPlan{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Steps:        steps,
	}
}

package workflow

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func seedCategories() []WorkflowCategory {
	return []WorkflowCategory{
		{ID: "c1", Name: "Short Leave", MinDays: dec(0.5), MaxDays: dec(2), MaxSteps: 2, IsActive: true},
		{ID: "c2", Name: "Medium Leave", MinDays: dec(3), MaxDays: dec(5), MaxSteps: 3, IsActive: true},
		{ID: "c3", Name: "Long Leave", MinDays: dec(6), MaxDays: dec(14), MaxSteps: 4, IsActive: true},
		{ID: "c4", Name: "Extended Leave", MinDays: dec(15), MaxDays: dec(30), MaxSteps: 5, IsActive: true},
		{ID: "c5", Name: "Long-Term Leave", MinDays: dec(31), MaxDays: dec(90), MaxSteps: 6, IsActive: true},
	}
}

func seedWorkflows() []ApprovalWorkflow {
	return []ApprovalWorkflow{
		{ID: "w1", Name: "Short Leave", MinDays: dec(0.5), MaxDays: dec(2), IsActive: true,
			ApprovalLevels: []ApproverRole{RoleManager, RoleHR}},
		{ID: "w2", Name: "Medium Leave", MinDays: dec(3), MaxDays: dec(5), IsActive: true,
			ApprovalLevels: []ApproverRole{RoleTeamLead, RoleManager, RoleHR}},
		{ID: "w3", Name: "Long Leave", MinDays: dec(6), MaxDays: dec(14), IsActive: true,
			ApprovalLevels: []ApproverRole{RoleTeamLead, RoleManager, RoleDepartmentHead, RoleHR}},
		{ID: "w4", Name: "Extended Leave", MinDays: dec(15), MaxDays: dec(30), IsActive: true,
			ApprovalLevels: []ApproverRole{RoleTeamLead, RoleManager, RoleDepartmentHead, RoleHR, RoleSuperAdmin}},
		{ID: "w5", Name: "Long-Term Leave", MinDays: dec(31), MaxDays: dec(90), IsActive: true,
			ApprovalLevels: []ApproverRole{RoleTeamLead, RoleManager, RoleDepartmentHead, RoleHR, RoleHR, RoleSuperAdmin}},
	}
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestResolveCategorySeedRanges(t *testing.T) {
	tests := []struct {
		days     float64
		wantName string
		wantLen  int
	}{
		{0.5, "Short Leave", 2},
		{1.5, "Short Leave", 2},
		{2, "Short Leave", 2},
		{3, "Medium Leave", 3},
		{5, "Medium Leave", 3},
		{6, "Long Leave", 4},
		{10, "Long Leave", 4},
		{14, "Long Leave", 4},
		{15, "Extended Leave", 5},
		{30, "Extended Leave", 5},
		{31, "Long-Term Leave", 6},
		{45, "Long-Term Leave", 6},
		{90, "Long-Term Leave", 6},
	}

	categories := seedCategories()
	workflows := seedWorkflows()
	for _, tt := range tests {
		category, err := ResolveCategory(categories, dec(tt.days))
		if err != nil {
			t.Fatalf("ResolveCategory(%v): %v", tt.days, err)
		}
		if category.Name != tt.wantName {
			t.Errorf("ResolveCategory(%v) = %q, want %q", tt.days, category.Name, tt.wantName)
		}

		wf, err := ResolveWorkflow(workflows, dec(tt.days))
		if err != nil {
			t.Fatalf("ResolveWorkflow(%v): %v", tt.days, err)
		}
		if len(wf.ApprovalLevels) != tt.wantLen {
			t.Errorf("ResolveWorkflow(%v) has %d levels, want %d", tt.days, len(wf.ApprovalLevels), tt.wantLen)
		}
	}
}

func TestResolveCategoryNoMatch(t *testing.T) {
	categories := seedCategories()

	if _, err := ResolveCategory(categories, dec(91)); !errors.Is(err, ErrNoCategoryMatch) {
		t.Errorf("days above all ranges: got %v, want ErrNoCategoryMatch", err)
	}
	if _, err := ResolveCategory(categories, dec(2.5)); !errors.Is(err, ErrNoCategoryMatch) {
		t.Errorf("days in a gap: got %v, want ErrNoCategoryMatch", err)
	}
	if _, err := ResolveWorkflow(seedWorkflows(), dec(91)); !errors.Is(err, ErrNoWorkflowMatch) {
		t.Errorf("workflow above all ranges: got %v, want ErrNoWorkflowMatch", err)
	}
}

func TestResolveCategoryOverlapPrefersLowestMinDays(t *testing.T) {
	categories := []WorkflowCategory{
		{ID: "wide", Name: "Wide", MinDays: dec(1), MaxDays: dec(30), MaxSteps: 4, IsActive: true},
		{ID: "narrow", Name: "Narrow", MinDays: dec(0.5), MaxDays: dec(5), MaxSteps: 2, IsActive: true},
	}

	category, err := ResolveCategory(categories, dec(3))
	if err != nil {
		t.Fatal(err)
	}
	if category.Name != "Narrow" {
		t.Errorf("overlap resolved to %q, want the lower-minDays %q", category.Name, "Narrow")
	}
}

func TestResolveCategorySkipsInactive(t *testing.T) {
	categories := seedCategories()
	categories[0].IsActive = false

	if _, err := ResolveCategory(categories, dec(1)); !errors.Is(err, ErrNoCategoryMatch) {
		t.Errorf("inactive category matched: %v", err)
	}
}

func TestResolveWorkflowSkipsEmptyLevels(t *testing.T) {
	workflows := []ApprovalWorkflow{
		{ID: "empty", Name: "Empty", MinDays: dec(0.5), MaxDays: dec(5), IsActive: true},
		{ID: "real", Name: "Real", MinDays: dec(0.5), MaxDays: dec(5), IsActive: true,
			ApprovalLevels: []ApproverRole{RoleManager}},
	}

	wf, err := ResolveWorkflow(workflows, dec(2))
	if err != nil {
		t.Fatal(err)
	}
	if wf.ID != "real" {
		t.Errorf("resolved %q, want the workflow with levels", wf.ID)
	}
}

func TestBuildPlanLevelsAreOneBased(t *testing.T) {
	category := seedCategories()[1]
	wf := seedWorkflows()[1]

	plan := BuildPlan(category, wf)
	if plan.CategoryName != "Medium Leave" || plan.WorkflowName != "Medium Leave" {
		t.Fatalf("plan names = %q/%q", plan.CategoryName, plan.WorkflowName)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("plan has %d steps, want 3", len(plan.Steps))
	}
	for i, step := range plan.Steps {
		if step.Level != i+1 {
			t.Errorf("step %d has level %d", i, step.Level)
		}
	}
	if plan.Steps[0].Role != RoleTeamLead || plan.Steps[2].Role != RoleHR {
		t.Errorf("unexpected roles: %+v", plan.Steps)
	}
}

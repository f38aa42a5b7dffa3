package tests

import (
	"errors"
	"testing"
)

// Walks one project through assignment and evaluation end to end.
func TestProjectVendorLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	project, err := admin.createProject(map[string]string{
		"client":     "acme",
		"name":       "storefront rebuild",
		"start_date": "2026-01-01",
		"end_date":   "2026-06-30",
	})
	if err != nil {
		t.Fatal(err)
	}
	projectId := project.Id.String()

	vendor1 := createVendorUser(t, env, admin, "vendor1")
	vendor2 := createVendorUser(t, env, admin, "vendor2")
	metrics := createMetrics(t, admin, "quality", "communication")

	first, err := admin.assignVendor(projectId, vendor1, map[string]string{
		"role":       "dev",
		"start_date": "2026-02-01",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.assignVendor(projectId, vendor1, map[string]string{"role": "qa"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("vendor cannot join the same project twice: %v", err)
	}

	_, err = admin.assignVendor(projectId, vendor2, map[string]string{
		"role":       "dev",
		"start_date": "2025-12-01",
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("assignment must start within the project: %v", err)
	}

	result, err := admin.saveEvaluation(first, "good work", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 5},
		{"metric_id": metrics[1].Id, "value": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.GlobalRating != 4.0 {
		t.Fatalf("expected global rating 4.0, got %v", result.GlobalRating)
	}
	if result.VendorScore != 4.0 {
		t.Fatalf("first evaluation sets the vendor score, got %v", result.VendorScore)
	}

	other := createProject(t, admin, "backoffice migration")
	second, err := admin.assignVendor(other, vendor1, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}

	result, err = admin.saveEvaluation(second, "missed deadlines", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 2},
		{"metric_id": metrics[1].Id, "value": 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.GlobalRating != 2.0 {
		t.Fatalf("expected global rating 2.0, got %v", result.GlobalRating)
	}
	if result.VendorScore != 3.0 {
		t.Fatalf("score should be the mean across both projects, got %v", result.VendorScore)
	}
}

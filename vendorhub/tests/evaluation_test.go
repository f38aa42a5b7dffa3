package tests

import (
	"errors"
	"testing"
	"vendorhub/vendorhub/services"
)

func createMetrics(t *testing.T, admin client, names ...string) []services.MetricInfo {
	t.Helper()

	metrics := make([]services.MetricInfo, 0, len(names))
	for _, name := range names {
		metric, err := admin.createMetric(name, "")
		if err != nil {
			t.Fatal(err)
		}
		metrics = append(metrics, metric)
	}
	return metrics
}

func TestSaveEvaluation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	projectId := createProject(t, admin, "p1")
	vendorId := createVendorUser(t, env, admin, "vendor1")
	metrics := createMetrics(t, admin, "quality", "communication", "punctuality")

	participationId, err := admin.assignVendor(projectId, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}

	result, err := admin.saveEvaluation(participationId, "solid delivery", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 4},
		{"metric_id": metrics[1].Id, "value": 5},
		{"metric_id": metrics[2].Id, "value": 3},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.GlobalRating != 4.0 {
		t.Fatalf("expected global rating 4.0, got %v", result.GlobalRating)
	}
	if result.VendorScore != 4.0 {
		t.Fatalf("expected vendor score 4.0, got %v", result.VendorScore)
	}

	evaluation, err := admin.getEvaluation(participationId)
	if err != nil {
		t.Fatal(err)
	}
	if evaluation.Comment != "solid delivery" || evaluation.GlobalRating != 4.0 || len(evaluation.Details) != 3 {
		t.Fatalf("invalid evaluation %v", evaluation)
	}

	vendor, err := admin.getVendor(vendorId)
	if err != nil {
		t.Fatal(err)
	}
	if vendor.Score == nil || *vendor.Score != 4.0 {
		t.Fatalf("invalid vendor score %v", vendor.Score)
	}
	if len(vendor.History) != 1 || vendor.History[0].GlobalRating != 4.0 || vendor.History[0].ProjectName != "p1" {
		t.Fatalf("invalid vendor history %v", vendor.History)
	}
}

func TestDuplicateEvaluationRejected(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	projectId := createProject(t, admin, "p1")
	vendorId := createVendorUser(t, env, admin, "vendor1")
	metrics := createMetrics(t, admin, "quality")

	participationId, err := admin.assignVendor(projectId, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.saveEvaluation(participationId, "first", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 5},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.saveEvaluation(participationId, "second", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 1},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("assignments can only be evaluated once: %v", err)
	}

	evaluation, err := admin.getEvaluation(participationId)
	if err != nil {
		t.Fatal(err)
	}
	if evaluation.Comment != "first" {
		t.Fatalf("rejected evaluation should not overwrite the original: %v", evaluation)
	}
}

func TestVendorScoreAveragesAcrossProjects(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	vendorId := createVendorUser(t, env, admin, "vendor1")
	metrics := createMetrics(t, admin, "quality")

	p1 := createProject(t, admin, "p1")
	p2 := createProject(t, admin, "p2")

	first, err := admin.assignVendor(p1, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := admin.assignVendor(p2, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}

	result, err := admin.saveEvaluation(first, "great", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.VendorScore != 4.0 {
		t.Fatalf("expected vendor score 4.0, got %v", result.VendorScore)
	}

	result, err = admin.saveEvaluation(second, "rough", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.VendorScore != 3.0 {
		t.Fatalf("expected vendor score 3.0 after second evaluation, got %v", result.VendorScore)
	}
}

func TestEvaluationValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	projectId := createProject(t, admin, "p1")
	vendorId := createVendorUser(t, env, admin, "vendor1")
	metrics := createMetrics(t, admin, "quality")

	participationId, err := admin.assignVendor(projectId, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.saveEvaluation(participationId, "", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 3},
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("comment is required: %v", err)
	}

	_, err = admin.saveEvaluation(participationId, "comment", nil)
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("at least one metric must be scored: %v", err)
	}

	_, err = admin.saveEvaluation(participationId, "comment", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 3},
		{"metric_id": metrics[0].Id, "value": 4},
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("metrics cannot be scored twice: %v", err)
	}

	_, err = admin.saveEvaluation(participationId, "comment", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 6},
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("values above 5 are rejected: %v", err)
	}

	_, err = admin.saveEvaluation(participationId, "comment", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 0},
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("values below 1 are rejected: %v", err)
	}

	_, err = admin.saveEvaluation(participationId, "comment", []map[string]interface{}{
		{"metric_id": "e2deef3c-2f26-4b3a-9350-7ae8ea28b82c", "value": 3},
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("unknown metrics are rejected: %v", err)
	}

	_, err = admin.saveEvaluation("e2deef3c-2f26-4b3a-9350-7ae8ea28b82c", "comment", []map[string]interface{}{
		{"metric_id": metrics[0].Id, "value": 3},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing assignment: %v", err)
	}

	_, err = admin.getEvaluation(participationId)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("no evaluation should have been recorded: %v", err)
	}
}

func TestRemoveAssignmentRecomputesScore(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	vendorId := createVendorUser(t, env, admin, "vendor1")
	metrics := createMetrics(t, admin, "quality")

	p1 := createProject(t, admin, "p1")
	p2 := createProject(t, admin, "p2")

	first, err := admin.assignVendor(p1, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := admin.assignVendor(p2, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.saveEvaluation(first, "a", []map[string]interface{}{{"metric_id": metrics[0].Id, "value": 4}}); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.saveEvaluation(second, "b", []map[string]interface{}{{"metric_id": metrics[0].Id, "value": 2}}); err != nil {
		t.Fatal(err)
	}

	err = admin.removeAssignment(second)
	if err != nil {
		t.Fatal(err)
	}

	vendor, err := admin.getVendor(vendorId)
	if err != nil {
		t.Fatal(err)
	}
	if vendor.Score == nil || *vendor.Score != 4.0 {
		t.Fatalf("score should be rebuilt from the remaining evaluations, got %v", vendor.Score)
	}

	// Removing the evaluated assignment discards its evaluation entirely.
	_, err = admin.getEvaluation(second)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("evaluation should be removed with the assignment: %v", err)
	}
}

func TestDeleteProjectDiscardsEvaluations(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	vendorId := createVendorUser(t, env, admin, "vendor1")
	metrics := createMetrics(t, admin, "quality")

	p1 := createProject(t, admin, "p1")
	p2 := createProject(t, admin, "p2")

	first, err := admin.assignVendor(p1, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := admin.assignVendor(p2, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.saveEvaluation(first, "a", []map[string]interface{}{{"metric_id": metrics[0].Id, "value": 5}}); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.saveEvaluation(second, "b", []map[string]interface{}{{"metric_id": metrics[0].Id, "value": 1}}); err != nil {
		t.Fatal(err)
	}

	err = admin.deleteProject(p2)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.getProject(p2)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("project should be deleted: %v", err)
	}

	_, err = admin.getEvaluation(second)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("evaluations should be deleted with the project: %v", err)
	}

	vendor, err := admin.getVendor(vendorId)
	if err != nil {
		t.Fatal(err)
	}
	if vendor.Score == nil || *vendor.Score != 5.0 {
		t.Fatalf("score should be rebuilt after project deletion, got %v", vendor.Score)
	}
}

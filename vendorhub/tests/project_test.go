package tests

import (
	"errors"
	"testing"
)

func TestProjectCreateAndGet(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	project, err := admin.createProject(map[string]string{
		"client":      "acme",
		"name":        "storefront rebuild",
		"description": "rebuild of the webshop",
		"tech_stack":  "go, react",
		"start_date":  "2026-01-01",
		"end_date":    "2026-12-31",
	})
	if err != nil {
		t.Fatal(err)
	}

	if project.Status != "planned" {
		t.Fatalf("new project should default to planned, got %v", project.Status)
	}

	got, err := admin.getProject(project.Id.String())
	if err != nil {
		t.Fatal(err)
	}
	if got.Client != "acme" || got.Name != "storefront rebuild" || got.StartDate != "2026-01-01" {
		t.Fatalf("invalid project info %v", got)
	}
	if got.EndDate == nil || *got.EndDate != "2026-12-31" {
		t.Fatalf("invalid project end date %v", got.EndDate)
	}

	user, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}

	projects, err := user.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].Id != project.Id {
		t.Fatalf("invalid project list %v", projects)
	}
}

func TestProjectCreateRequiresAdmin(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createProject(map[string]string{
		"client": "acme", "name": "p1", "start_date": "2026-01-01",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular users cannot create projects: %v", err)
	}
}

func TestProjectValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createProject(map[string]string{"client": "acme", "start_date": "2026-01-01"})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("project name is required: %v", err)
	}

	_, err = admin.createProject(map[string]string{"client": "acme", "name": "p1"})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("project start date is required: %v", err)
	}

	_, err = admin.createProject(map[string]string{
		"client": "acme", "name": "p1", "start_date": "01/01/2026",
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("malformed dates are rejected: %v", err)
	}

	_, err = admin.createProject(map[string]string{
		"client": "acme", "name": "p1", "start_date": "2026-06-01", "end_date": "2026-01-01",
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("end before start is rejected: %v", err)
	}

	_, err = admin.createProject(map[string]string{
		"client": "acme", "name": "p1", "start_date": "2026-01-01", "status": "bogus",
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("unknown status is rejected: %v", err)
	}
}

func TestProjectUpdate(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	project, err := admin.createProject(map[string]string{
		"client": "acme", "name": "p1", "start_date": "2026-01-01",
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := admin.updateProject(project.Id.String(), map[string]string{
		"client":     "acme corp",
		"name":       "p1 phase 2",
		"tech_stack": "go",
		"start_date": "2026-02-01",
		"end_date":   "2026-11-30",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Client != "acme corp" || updated.Name != "p1 phase 2" || updated.StartDate != "2026-02-01" {
		t.Fatalf("invalid updated project %v", updated)
	}

	_, err = admin.updateProject(project.Id.String(), map[string]string{
		"client": "acme", "name": "p1", "start_date": "2026-06-01", "end_date": "2026-01-01",
	})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("end before start is rejected on update: %v", err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}
	_, err = user.updateProject(project.Id.String(), map[string]string{
		"client": "acme", "name": "p1", "start_date": "2026-01-01",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular users cannot update projects: %v", err)
	}
}

func TestStatusWorkflow(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	project, err := admin.createProject(map[string]string{
		"client": "acme", "name": "p1", "start_date": "2026-01-01",
	})
	if err != nil {
		t.Fatal(err)
	}
	projectId := project.Id.String()

	// Self transitions are never allowed.
	_, err = admin.updateStatus(projectId, "planned")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("self transition should be rejected: %v", err)
	}

	_, err = admin.updateStatus(projectId, "paused")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("planned cannot pause: %v", err)
	}

	for _, status := range []string{"in_progress", "paused", "in_progress", "completed"} {
		updated, err := admin.updateStatus(projectId, status)
		if err != nil {
			t.Fatal(err)
		}
		if updated.Status != status {
			t.Fatalf("expected status %v, got %v", status, updated.Status)
		}
	}

	// Completed is terminal.
	for _, status := range []string{"planned", "in_progress", "paused", "cancelled"} {
		_, err = admin.updateStatus(projectId, status)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("completed projects cannot move to %v: %v", status, err)
		}
	}

	transitions, err := admin.allowedTransitions(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if transitions.Status != "completed" || len(transitions.Transitions) != 0 {
		t.Fatalf("invalid transitions for completed project: %v", transitions)
	}
}

func TestStatusWorkflowCancellation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range [][]string{
		{"cancelled"},
		{"in_progress", "cancelled"},
		{"in_progress", "paused", "cancelled"},
	} {
		project, err := admin.createProject(map[string]string{
			"client": "acme", "name": "p1", "start_date": "2026-01-01",
		})
		if err != nil {
			t.Fatal(err)
		}

		var last string
		for _, status := range path {
			updated, err := admin.updateStatus(project.Id.String(), status)
			if err != nil {
				t.Fatal(err)
			}
			last = updated.Status
		}
		if last != "cancelled" {
			t.Fatalf("expected cancelled, got %v", last)
		}

		_, err = admin.updateStatus(project.Id.String(), "in_progress")
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("cancelled is terminal: %v", err)
		}
	}
}

func TestProjectNotFound(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.getProject("not-a-uuid")
	if err == nil {
		t.Fatal("invalid uuid should be rejected")
	}

	_, err = admin.getProject("e2deef3c-2f26-4b3a-9350-7ae8ea28b82c")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found: %v", err)
	}

	_, err = admin.updateStatus("e2deef3c-2f26-4b3a-9350-7ae8ea28b82c", "in_progress")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found: %v", err)
	}

	err = admin.deleteProject("e2deef3c-2f26-4b3a-9350-7ae8ea28b82c")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found: %v", err)
	}
}

func TestProjectListOrdering(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	for _, start := range []string{"2026-03-01", "2026-01-01", "2026-02-01"} {
		_, err := admin.createProject(map[string]string{
			"client": "acme", "name": "p-" + start, "start_date": start,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	projects, err := admin.listProjects()
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{"2026-03-01", "2026-02-01", "2026-01-01"}
	if len(projects) != len(expected) {
		t.Fatalf("expected %d projects, got %d", len(expected), len(projects))
	}
	for i, start := range expected {
		if projects[i].StartDate != start {
			t.Fatalf("projects should be listed most recent first, got %v at %d", projects[i].StartDate, i)
		}
	}
}

package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrVendorNotFound     = errors.New("vendor profile not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrMetricNotFound     = errors.New("metric not found")
	ErrDbAccessFailed     = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetVendor(vendorId uuid.UUID, db *gorm.DB, loadUser bool) (VendorProfile, error) {
	var vendor VendorProfile

	query := db
	if loadUser {
		query = query.Preload("User")
	}

	result := query.First(&vendor, "id = ?", vendorId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return vendor, ErrVendorNotFound
		}
		slog.Error("sql error in get vendor", "vendor_id", vendorId, "error", result.Error)
		return vendor, ErrDbAccessFailed
	}

	return vendor, nil
}

func GetProject(projectId uuid.UUID, db *gorm.DB) (Project, error) {
	var project Project

	result := db.First(&project, "id = ?", projectId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project", "project_id", projectId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func GetAssignment(assignmentId uuid.UUID, db *gorm.DB, loadProject bool) (Assignment, error) {
	var assignment Assignment

	query := db
	if loadProject {
		query = query.Preload("Project")
	}

	result := query.First(&assignment, "id = ?", assignmentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return assignment, ErrAssignmentNotFound
		}
		slog.Error("sql error in get assignment", "assignment_id", assignmentId, "error", result.Error)
		return assignment, ErrDbAccessFailed
	}

	return assignment, nil
}

func GetEvaluation(assignmentId uuid.UUID, db *gorm.DB, loadDetails bool) (Evaluation, error) {
	var evaluation Evaluation

	query := db
	if loadDetails {
		query = query.Preload("Details")
	}

	result := query.First(&evaluation, "assignment_id = ?", assignmentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return evaluation, ErrEvaluationNotFound
		}
		slog.Error("sql error in get evaluation", "assignment_id", assignmentId, "error", result.Error)
		return evaluation, ErrDbAccessFailed
	}

	return evaluation, nil
}

func GetMetric(metricId uuid.UUID, db *gorm.DB) (Metric, error) {
	var metric Metric

	result := db.First(&metric, "id = ?", metricId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return metric, ErrMetricNotFound
		}
		slog.Error("sql error in get metric", "metric_id", metricId, "error", result.Error)
		return metric, ErrDbAccessFailed
	}

	return metric, nil
}

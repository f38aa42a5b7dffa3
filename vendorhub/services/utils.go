package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"vendorhub/vendorhub/schema"
	"vendorhub/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrDuplicateAssignment = errors.New("vendor is already assigned to this project")
	ErrDuplicateEvaluation = errors.New("assignment has already been evaluated")
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func checkProjectExists(txn *gorm.DB, projectId uuid.UUID) error {
	if _, err := schema.GetProject(projectId, txn); err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkVendorExists(txn *gorm.DB, vendorId uuid.UUID) error {
	if _, err := schema.GetVendor(vendorId, txn, false); err != nil {
		if errors.Is(err, schema.ErrVendorNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkMetricExists(txn *gorm.DB, metricId uuid.UUID) error {
	if _, err := schema.GetMetric(metricId, txn); err != nil {
		if errors.Is(err, schema.ErrMetricNotFound) {
			return CodedError(fmt.Errorf("unknown metric %v", metricId), http.StatusUnprocessableEntity)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

// Fast path only, the unique index on (project_id, vendor_id) is the real
// guard against concurrent duplicate assignment.
func checkForDuplicateAssignment(txn *gorm.DB, projectId, vendorId uuid.UUID) error {
	var existing schema.Assignment
	result := txn.Limit(1).Find(&existing, "project_id = ? AND vendor_id = ?", projectId, vendorId)
	if result.Error != nil {
		slog.Error("sql error checking for duplicate assignment", "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected != 0 {
		return CodedError(ErrDuplicateAssignment, http.StatusConflict)
	}
	return nil
}

func parseDateField(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	date, err := utils.ParseDate(value)
	if err != nil {
		return nil, CodedError(fmt.Errorf("invalid %v: %w", field, err), http.StatusUnprocessableEntity)
	}
	return &date, nil
}

func formatDatePtr(date *time.Time) *string {
	if date == nil {
		return nil
	}
	formatted := utils.FormatDate(*date)
	return &formatted
}

// Containment is only checked when both the assignment bound and the matching
// project bound are present. Bounds are inclusive.
func checkAssignmentDates(project schema.Project, start, end *time.Time) error {
	if start != nil && start.Before(project.StartDate) {
		return CodedError(fmt.Errorf(
			"assignment start %v precedes project start %v",
			utils.FormatDate(*start), utils.FormatDate(project.StartDate),
		), http.StatusUnprocessableEntity)
	}
	if end != nil && project.EndDate != nil && end.After(*project.EndDate) {
		return CodedError(fmt.Errorf(
			"assignment end %v exceeds project end %v",
			utils.FormatDate(*end), utils.FormatDate(*project.EndDate),
		), http.StatusUnprocessableEntity)
	}
	return nil
}

// recomputeVendorScore recalculates the vendor's aggregate score from scratch
// as the mean of the global ratings of every evaluation the vendor has
// received, across all projects. It must run inside the same transaction as
// the write that changed the evaluation set. An empty set yields 0.0.
func recomputeVendorScore(txn *gorm.DB, vendorId uuid.UUID) (float64, error) {
	var ratings []float64
	result := txn.Model(&schema.Evaluation{}).
		Joins("JOIN assignments ON assignments.id = evaluations.assignment_id").
		Where("assignments.vendor_id = ?", vendorId).
		Pluck("evaluations.global_rating", &ratings)
	if result.Error != nil {
		slog.Error("sql error collecting vendor ratings", "vendor_id", vendorId, "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	score := 0.0
	if len(ratings) > 0 {
		sum := 0.0
		for _, rating := range ratings {
			sum += rating
		}
		score = sum / float64(len(ratings))
	}

	result = txn.Model(&schema.VendorProfile{}).Where("id = ?", vendorId).Update("score", score)
	if result.Error != nil {
		slog.Error("sql error updating vendor score", "vendor_id", vendorId, "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return score, nil
}

// deleteAssignmentRows removes the given assignments together with their
// evaluations and evaluation details, returning the contract keys of the
// removed rows so the caller can clean up the document store after the
// transaction commits.
func deleteAssignmentRows(txn *gorm.DB, assignmentIds []uuid.UUID) ([]string, error) {
	if len(assignmentIds) == 0 {
		return nil, nil
	}

	var contracts []string
	result := txn.Model(&schema.Assignment{}).
		Where("id IN ? AND contract_path IS NOT NULL", assignmentIds).
		Pluck("contract_path", &contracts)
	if result.Error != nil {
		slog.Error("sql error collecting contract paths", "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	var evaluationIds []uuid.UUID
	result = txn.Model(&schema.Evaluation{}).
		Where("assignment_id IN ?", assignmentIds).
		Pluck("id", &evaluationIds)
	if result.Error != nil {
		slog.Error("sql error collecting evaluation ids", "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	if len(evaluationIds) > 0 {
		result = txn.Where("evaluation_id IN ?", evaluationIds).Delete(&schema.EvaluationDetail{})
		if result.Error != nil {
			slog.Error("sql error deleting evaluation details", "error", result.Error)
			return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Where("id IN ?", evaluationIds).Delete(&schema.Evaluation{})
		if result.Error != nil {
			slog.Error("sql error deleting evaluations", "error", result.Error)
			return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
	}

	result = txn.Where("id IN ?", assignmentIds).Delete(&schema.Assignment{})
	if result.Error != nil {
		slog.Error("sql error deleting assignments", "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return contracts, nil
}

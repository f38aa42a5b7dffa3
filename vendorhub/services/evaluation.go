package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"vendorhub/vendorhub/auth"
	"vendorhub/vendorhub/schema"
	"vendorhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type EvaluationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *EvaluationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/{participation_id}", s.GetEvaluation)
	r.With(auth.AdminOnly(s.db)).Post("/{participation_id}", s.SaveEvaluation)

	return r
}

type evaluationDetail struct {
	MetricId uuid.UUID `json:"metric_id"`
	Value    int       `json:"value"`
}

type saveEvaluationRequest struct {
	Comment string             `json:"comment"`
	Details []evaluationDetail `json:"details"`
}

type saveEvaluationResponse struct {
	EvaluationId uuid.UUID `json:"evaluation_id"`
	GlobalRating float64   `json:"global_rating"`
	VendorScore  float64   `json:"vendor_score"`
}

type EvaluationInfo struct {
	Id           uuid.UUID          `json:"id"`
	EvaluatorId  uuid.UUID          `json:"evaluator_id"`
	Comment      string             `json:"comment"`
	GlobalRating float64            `json:"global_rating"`
	CreatedAt    time.Time          `json:"created_at"`
	Details      []evaluationDetail `json:"details"`
}

const (
	minMetricValue = 1
	maxMetricValue = 5
)

func validateEvaluationDetails(details []evaluationDetail) error {
	if len(details) == 0 {
		return CodedError(errors.New("evaluation must score at least one metric"), http.StatusUnprocessableEntity)
	}

	seen := make(map[uuid.UUID]bool, len(details))
	for _, detail := range details {
		if seen[detail.MetricId] {
			return CodedError(fmt.Errorf("metric %v is scored more than once", detail.MetricId), http.StatusUnprocessableEntity)
		}
		seen[detail.MetricId] = true

		if detail.Value < minMetricValue || detail.Value > maxMetricValue {
			return CodedError(fmt.Errorf(
				"metric value %v is out of range, must be between %v and %v", detail.Value, minMetricValue, maxMetricValue,
			), http.StatusUnprocessableEntity)
		}
	}

	return nil
}

func (s *EvaluationService) SaveEvaluation(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(saveEvaluationMetric)
	defer timer.ObserveDuration()

	participationId, err := utils.URLParamUUID(r, "participation_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	evaluator, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params saveEvaluationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Comment == "" {
		http.Error(w, "evaluation comment must be specified", http.StatusUnprocessableEntity)
		return
	}

	if err := validateEvaluationDetails(params.Details); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	sum := 0.0
	for _, detail := range params.Details {
		sum += float64(detail.Value)
	}
	globalRating := sum / float64(len(params.Details))

	evaluationId := uuid.New()
	var vendorScore float64

	err = s.db.Transaction(func(txn *gorm.DB) error {
		assignment, err := schema.GetAssignment(participationId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrAssignmentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		var existing schema.Evaluation
		result := txn.Limit(1).Find(&existing, "assignment_id = ?", participationId)
		if result.Error != nil {
			slog.Error("sql error checking for existing evaluation", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(ErrDuplicateEvaluation, http.StatusConflict)
		}

		for _, detail := range params.Details {
			if err := checkMetricExists(txn, detail.MetricId); err != nil {
				return err
			}
		}

		evaluation := schema.Evaluation{
			Id:           evaluationId,
			AssignmentId: participationId,
			EvaluatorId:  evaluator.Id,
			Comment:      params.Comment,
			GlobalRating: globalRating,
			CreatedAt:    time.Now().UTC(),
			Details:      make([]schema.EvaluationDetail, 0, len(params.Details)),
		}
		for _, detail := range params.Details {
			evaluation.Details = append(evaluation.Details, schema.EvaluationDetail{
				EvaluationId: evaluationId,
				MetricId:     detail.MetricId,
				Value:        detail.Value,
			})
		}

		result = txn.Create(&evaluation)
		if result.Error != nil {
			// The unique index on assignment_id closes the race between two
			// concurrent saves for the same assignment.
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return CodedError(ErrDuplicateEvaluation, http.StatusConflict)
			}
			slog.Error("sql error creating evaluation", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		vendorScore, err = recomputeVendorScore(txn, assignment.VendorId)
		return err
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error saving evaluation: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, saveEvaluationResponse{
		EvaluationId: evaluationId,
		GlobalRating: globalRating,
		VendorScore:  vendorScore,
	})
}

func (s *EvaluationService) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	participationId, err := utils.URLParamUUID(r, "participation_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	evaluation, err := schema.GetEvaluation(participationId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrEvaluationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	details := make([]evaluationDetail, 0, len(evaluation.Details))
	for _, detail := range evaluation.Details {
		details = append(details, evaluationDetail{MetricId: detail.MetricId, Value: detail.Value})
	}

	utils.WriteJsonResponse(w, EvaluationInfo{
		Id:           evaluation.Id,
		EvaluatorId:  evaluation.EvaluatorId,
		Comment:      evaluation.Comment,
		GlobalRating: evaluation.GlobalRating,
		CreatedAt:    evaluation.CreatedAt,
		Details:      details,
	})
}

package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"vendorhub/vendorhub/auth"
	"vendorhub/vendorhub/schema"
	"vendorhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MetricService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *MetricService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.CreateMetric)
		r.Delete("/{metric_id}", s.DeleteMetric)
	})

	return r
}

type metricRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

type MetricInfo struct {
	Id    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Notes string    `json:"notes"`
}

func (s *MetricService) CreateMetric(w http.ResponseWriter, r *http.Request) {
	var params metricRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "metric name must be specified", http.StatusUnprocessableEntity)
		return
	}

	newMetric := schema.Metric{Id: uuid.New(), Name: params.Name, Notes: params.Notes}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Metric
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate metric name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("metric with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newMetric)
		if result.Error != nil {
			slog.Error("sql error creating new metric", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating metric: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, MetricInfo{Id: newMetric.Id, Name: newMetric.Name, Notes: newMetric.Notes})
}

func (s *MetricService) List(w http.ResponseWriter, r *http.Request) {
	var metrics []schema.Metric
	result := s.db.Order("name ASC").Find(&metrics)
	if result.Error != nil {
		slog.Error("sql error listing metrics", "error", result.Error)
		http.Error(w, "error listing metrics", http.StatusInternalServerError)
		return
	}

	infos := make([]MetricInfo, 0, len(metrics))
	for _, metric := range metrics {
		infos = append(infos, MetricInfo{Id: metric.Id, Name: metric.Name, Notes: metric.Notes})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *MetricService) DeleteMetric(w http.ResponseWriter, r *http.Request) {
	metricId, err := utils.URLParamUUID(r, "metric_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetMetric(metricId, txn); err != nil {
			if errors.Is(err, schema.ErrMetricNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		// Detail rows keep the metric id with no foreign key, so recorded
		// evaluations survive the deletion unchanged.
		result := txn.Delete(&schema.Metric{Id: metricId})
		if result.Error != nil {
			slog.Error("sql error deleting metric", "metric_id", metricId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting metric: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

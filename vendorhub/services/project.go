package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"vendorhub/vendorhub/auth"
	"vendorhub/vendorhub/schema"
	"vendorhub/vendorhub/storage"
	"vendorhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type ProjectService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *ProjectService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.AdminOnly(s.db)).Post("/create", s.CreateProject)

	r.Get("/list", s.List)

	r.Route("/{project_id}", func(r chi.Router) {
		r.Get("/", s.GetProject)
		r.Get("/transitions", s.AllowedTransitions)

		r.Group(func(r chi.Router) {
			r.Use(auth.AdminOnly(s.db))

			r.Post("/update", s.UpdateProject)
			r.Post("/status", s.UpdateStatus)
			r.Delete("/", s.DeleteProject)
		})
	})

	return r
}

type projectRequest struct {
	Client      string `json:"client"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TechStack   string `json:"tech_stack"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
}

type ProjectInfo struct {
	Id          uuid.UUID `json:"id"`
	Client      string    `json:"client"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TechStack   string    `json:"tech_stack"`
	StartDate   string    `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	Status      string    `json:"status"`
}

func projectInfo(project schema.Project) ProjectInfo {
	return ProjectInfo{
		Id:          project.Id,
		Client:      project.Client,
		Name:        project.Name,
		Description: project.Description,
		TechStack:   project.TechStack,
		StartDate:   utils.FormatDate(project.StartDate),
		EndDate:     formatDatePtr(project.EndDate),
		Status:      schema.NormalizeStatus(project.Status),
	}
}

func validateProjectDates(params projectRequest) (time.Time, *time.Time, error) {
	if params.StartDate == "" {
		return time.Time{}, nil, CodedError(errors.New("project start date must be specified"), http.StatusUnprocessableEntity)
	}
	start, err := utils.ParseDate(params.StartDate)
	if err != nil {
		return time.Time{}, nil, CodedError(fmt.Errorf("invalid start date: %w", err), http.StatusUnprocessableEntity)
	}
	end, err := parseDateField(params.EndDate, "end date")
	if err != nil {
		return time.Time{}, nil, err
	}
	if end != nil && end.Before(start) {
		return time.Time{}, nil, CodedError(fmt.Errorf(
			"project end %v precedes start %v", params.EndDate, params.StartDate,
		), http.StatusUnprocessableEntity)
	}
	return start, end, nil
}

func (s *ProjectService) CreateProject(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(createProjectMetric)
	defer timer.ObserveDuration()

	var params projectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Client == "" || params.Name == "" {
		http.Error(w, "project client and name must be specified", http.StatusUnprocessableEntity)
		return
	}

	status := schema.NormalizeStatus(params.Status)
	if err := schema.CheckValidStatus(status); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	start, end, err := validateProjectDates(params)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	newProject := schema.Project{
		Id:          uuid.New(),
		Client:      params.Client,
		Name:        params.Name,
		Description: params.Description,
		TechStack:   params.TechStack,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
	}

	result := s.db.Create(&newProject)
	if result.Error != nil {
		slog.Error("sql error creating new project", "error", result.Error)
		http.Error(w, "error creating project", http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, projectInfo(newProject))
}

func (s *ProjectService) List(w http.ResponseWriter, r *http.Request) {
	var projects []schema.Project
	result := s.db.Order("start_date DESC").Find(&projects)
	if result.Error != nil {
		slog.Error("sql error listing projects", "error", result.Error)
		http.Error(w, "error listing projects", http.StatusInternalServerError)
		return
	}

	infos := make([]ProjectInfo, 0, len(projects))
	for _, project := range projects {
		infos = append(infos, projectInfo(project))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *ProjectService) GetProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project, err := schema.GetProject(projectId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJsonResponse(w, projectInfo(project))
}

func (s *ProjectService) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params projectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Client == "" || params.Name == "" {
		http.Error(w, "project client and name must be specified", http.StatusUnprocessableEntity)
		return
	}

	start, end, err := validateProjectDates(params)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var updated schema.Project
	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err := schema.GetProject(projectId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		// Status changes go through the workflow endpoint only.
		result := txn.Model(&project).Updates(map[string]interface{}{
			"client":      params.Client,
			"name":        params.Name,
			"description": params.Description,
			"tech_stack":  params.TechStack,
			"start_date":  start,
			"end_date":    end,
		})
		if result.Error != nil {
			slog.Error("sql error updating project", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = project
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating project: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, projectInfo(updated))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *ProjectService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(updateStatusMetric)
	defer timer.ObserveDuration()

	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidStatus(params.Status); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var updated schema.Project
	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err := schema.GetProject(projectId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		current := schema.NormalizeStatus(project.Status)
		if !schema.CanTransition(current, params.Status) {
			rejectedTransitionsMetric.Inc()
			allowed := schema.AllowedTransitions(current)
			hint := "none"
			if len(allowed) > 0 {
				hint = strings.Join(allowed, ", ")
			}
			return CodedError(fmt.Errorf(
				"cannot transition project from %v to %v, allowed transitions: %v", current, params.Status, hint,
			), http.StatusConflict)
		}

		result := txn.Model(&project).Update("status", params.Status)
		if result.Error != nil {
			slog.Error("sql error updating project status", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = project
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating project status: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, projectInfo(updated))
}

type allowedTransitionsResponse struct {
	Status      string   `json:"status"`
	Transitions []string `json:"transitions"`
}

func (s *ProjectService) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project, err := schema.GetProject(projectId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	current := schema.NormalizeStatus(project.Status)
	transitions := schema.AllowedTransitions(current)
	if transitions == nil {
		transitions = []string{}
	}

	utils.WriteJsonResponse(w, allowedTransitionsResponse{Status: current, Transitions: transitions})
}

func (s *ProjectService) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var vendorIds []uuid.UUID
	var contracts []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkProjectExists(txn, projectId); err != nil {
			return err
		}

		var assignmentIds []uuid.UUID
		result := txn.Model(&schema.Assignment{}).Where("project_id = ?", projectId).Pluck("id", &assignmentIds)
		if result.Error != nil {
			slog.Error("sql error collecting project assignments", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.Assignment{}).Where("project_id = ?", projectId).Distinct().Pluck("vendor_id", &vendorIds)
		if result.Error != nil {
			slog.Error("sql error collecting project vendors", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		contracts, err = deleteAssignmentRows(txn, assignmentIds)
		if err != nil {
			return err
		}

		result = txn.Delete(&schema.Project{Id: projectId})
		if result.Error != nil {
			slog.Error("sql error deleting project", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		// Deleting a project discards its evaluations, so affected vendor
		// scores must be rebuilt from the evaluations that remain.
		for _, vendorId := range vendorIds {
			if _, err := recomputeVendorScore(txn, vendorId); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting project: %v", err), GetResponseCode(err))
		return
	}

	for _, contract := range contracts {
		if err := s.storage.Delete(contract); err != nil {
			slog.Error("error deleting contract for removed project", "path", contract, "error", err)
		}
	}

	utils.WriteSuccess(w)
}

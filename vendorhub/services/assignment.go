package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
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

type AssignmentService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *AssignmentService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/project/{project_id}", func(r chi.Router) {
		r.Get("/participants", s.Participants)
		r.Get("/assignable", s.AssignableVendors)

		r.With(auth.AdminOnly(s.db)).Post("/vendor/{vendor_id}", s.AssignVendor)
	})

	r.Route("/{participation_id}", func(r chi.Router) {
		r.Get("/contract", s.DownloadContract)

		r.Group(func(r chi.Router) {
			r.Use(auth.AdminOnly(s.db))

			r.Post("/update", s.UpdateAssignment)
			r.Delete("/", s.RemoveAssignment)
		})
	})

	return r
}

type assignmentRequest struct {
	Role      string `json:"role"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type AssignmentInfo struct {
	ParticipationId uuid.UUID `json:"participation_id"`
	ProjectId       uuid.UUID `json:"project_id"`
	VendorId        uuid.UUID `json:"vendor_id"`
	Role            string    `json:"role"`
	StartDate       *string   `json:"start_date"`
	EndDate         *string   `json:"end_date"`
	HasContract     bool      `json:"has_contract"`
}

func assignmentInfo(assignment schema.Assignment) AssignmentInfo {
	return AssignmentInfo{
		ParticipationId: assignment.Id,
		ProjectId:       assignment.ProjectId,
		VendorId:        assignment.VendorId,
		Role:            assignment.Role,
		StartDate:       formatDatePtr(assignment.StartDate),
		EndDate:         formatDatePtr(assignment.EndDate),
		HasContract:     assignment.ContractPath != nil,
	}
}

// parseAssignmentRequest accepts either a json body or a multipart form with
// an optional 'contract' file part. When a contract is present it is written
// to the document store under the new assignment's id before the metadata row
// exists, so the caller must clean up the returned path if the insert fails.
func (s *AssignmentService) parseAssignmentRequest(r *http.Request, assignmentId uuid.UUID) (assignmentRequest, *string, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, mediaParams, err := mime.ParseMediaType(contentType)
	if err != nil {
		return assignmentRequest{}, nil, CodedError(fmt.Errorf("error parsing media type in request: %w", err), http.StatusBadRequest)
	}

	if mediaType != "multipart/form-data" {
		var params assignmentRequest
		if err := utils.DecodeRequestBody(r, &params); err != nil {
			return assignmentRequest{}, nil, CodedError(err, http.StatusBadRequest)
		}
		return params, nil, nil
	}

	boundary, ok := mediaParams["boundary"]
	if !ok {
		return assignmentRequest{}, nil, CodedError(fmt.Errorf("missing 'boundary' parameter in 'Content-Type' header"), http.StatusBadRequest)
	}

	var params assignmentRequest
	var contractPath *string

	reader := multipart.NewReader(r.Body, boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return assignmentRequest{}, contractPath, CodedError(fmt.Errorf("error parsing multipart request: %w", err), http.StatusBadRequest)
		}

		switch part.FormName() {
		case "role", "start_date", "end_date":
			value, err := io.ReadAll(part)
			if err != nil {
				return assignmentRequest{}, contractPath, CodedError(fmt.Errorf("error reading form field: %w", err), http.StatusBadRequest)
			}
			switch part.FormName() {
			case "role":
				params.Role = string(value)
			case "start_date":
				params.StartDate = string(value)
			case "end_date":
				params.EndDate = string(value)
			}
		case "contract":
			if part.FileName() == "" {
				return assignmentRequest{}, contractPath, CodedError(errors.New("contract filename cannot be empty"), http.StatusUnprocessableEntity)
			}
			path := storage.ContractPath(assignmentId, filepath.Base(part.FileName()))
			if err := s.storage.Write(path, part); err != nil {
				slog.Error("error saving uploaded contract", "error", err)
				return assignmentRequest{}, contractPath, CodedError(errors.New("error saving uploaded contract"), http.StatusInternalServerError)
			}
			contractPath = &path
		}
		part.Close()
	}

	return params, contractPath, nil
}

func (s *AssignmentService) removeOrphanedContract(contractPath *string) {
	if contractPath == nil {
		return
	}
	if err := s.storage.Delete(*contractPath); err != nil {
		slog.Error("orphaned contract left in document store", "path", *contractPath, "error", err)
	}
}

func (s *AssignmentService) AssignVendor(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(assignVendorMetric)
	defer timer.ObserveDuration()

	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vendorId, err := utils.URLParamUUID(r, "vendor_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	assignmentId := uuid.New()

	params, contractPath, err := s.parseAssignmentRequest(r, assignmentId)
	if err != nil {
		s.removeOrphanedContract(contractPath)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	start, err := parseDateField(params.StartDate, "start date")
	if err == nil {
		var end *time.Time
		end, err = parseDateField(params.EndDate, "end date")
		if err == nil {
			err = s.createAssignment(assignmentId, projectId, vendorId, params.Role, start, end, contractPath)
		}
	}
	if err != nil {
		s.removeOrphanedContract(contractPath)
		http.Error(w, fmt.Sprintf("error assigning vendor: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, map[string]uuid.UUID{"participation_id": assignmentId})
}

func (s *AssignmentService) createAssignment(
	assignmentId, projectId, vendorId uuid.UUID, role string, start, end *time.Time, contractPath *string,
) error {
	return s.db.Transaction(func(txn *gorm.DB) error {
		project, err := schema.GetProject(projectId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := checkVendorExists(txn, vendorId); err != nil {
			return err
		}

		if err := checkForDuplicateAssignment(txn, projectId, vendorId); err != nil {
			return err
		}

		if err := checkAssignmentDates(project, start, end); err != nil {
			return err
		}

		if role == "" {
			return CodedError(errors.New("assignment role must be specified"), http.StatusUnprocessableEntity)
		}

		assignment := schema.Assignment{
			Id:           assignmentId,
			ProjectId:    projectId,
			VendorId:     vendorId,
			Role:         role,
			StartDate:    start,
			EndDate:      end,
			ContractPath: contractPath,
		}

		result := txn.Create(&assignment)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return CodedError(ErrDuplicateAssignment, http.StatusConflict)
			}
			slog.Error("sql error creating assignment", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})
}

func (s *AssignmentService) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	participationId, err := utils.URLParamUUID(r, "participation_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params assignmentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Role == "" {
		http.Error(w, "assignment role must be specified", http.StatusUnprocessableEntity)
		return
	}

	start, err := parseDateField(params.StartDate, "start date")
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}
	end, err := parseDateField(params.EndDate, "end date")
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var updated schema.Assignment
	err = s.db.Transaction(func(txn *gorm.DB) error {
		assignment, err := schema.GetAssignment(participationId, txn, true)
		if err != nil {
			if errors.Is(err, schema.ErrAssignmentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := checkAssignmentDates(*assignment.Project, start, end); err != nil {
			return err
		}

		result := txn.Model(&assignment).Updates(map[string]interface{}{
			"role":       params.Role,
			"start_date": start,
			"end_date":   end,
		})
		if result.Error != nil {
			slog.Error("sql error updating assignment", "participation_id", participationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = assignment
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating assignment: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, assignmentInfo(updated))
}

func (s *AssignmentService) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	participationId, err := utils.URLParamUUID(r, "participation_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var contracts []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		assignment, err := schema.GetAssignment(participationId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrAssignmentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		contracts, err = deleteAssignmentRows(txn, []uuid.UUID{assignment.Id})
		if err != nil {
			return err
		}

		// The assignment's evaluation, if any, was just discarded.
		if _, err := recomputeVendorScore(txn, assignment.VendorId); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing assignment: %v", err), GetResponseCode(err))
		return
	}

	for _, contract := range contracts {
		if err := s.storage.Delete(contract); err != nil {
			slog.Error("error deleting contract for removed assignment", "path", contract, "error", err)
		}
	}

	utils.WriteSuccess(w)
}

type ParticipantInfo struct {
	ParticipationId uuid.UUID `json:"participation_id"`
	VendorId        uuid.UUID `json:"vendor_id"`
	DisplayName     string    `json:"display_name"`
	Score           *float64  `json:"score"`
	Role            string    `json:"role"`
	StartDate       *string   `json:"start_date"`
	EndDate         *string   `json:"end_date"`
	HasContract     bool      `json:"has_contract"`
	Evaluated       bool      `json:"evaluated"`
	GlobalRating    *float64  `json:"global_rating"`
}

func (s *AssignmentService) Participants(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkProjectExists(s.db, projectId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var assignments []schema.Assignment
	result := s.db.Preload("Vendor").Preload("Evaluation").
		Where("project_id = ?", projectId).
		Order("start_date DESC").
		Find(&assignments)
	if result.Error != nil {
		slog.Error("sql error listing project participants", "project_id", projectId, "error", result.Error)
		http.Error(w, "error listing project participants", http.StatusInternalServerError)
		return
	}

	participants := make([]ParticipantInfo, 0, len(assignments))
	for _, assignment := range assignments {
		info := ParticipantInfo{
			ParticipationId: assignment.Id,
			VendorId:        assignment.VendorId,
			DisplayName:     assignment.Vendor.DisplayName,
			Score:           assignment.Vendor.Score,
			Role:            assignment.Role,
			StartDate:       formatDatePtr(assignment.StartDate),
			EndDate:         formatDatePtr(assignment.EndDate),
			HasContract:     assignment.ContractPath != nil,
		}
		if assignment.Evaluation != nil {
			info.Evaluated = true
			rating := assignment.Evaluation.GlobalRating
			info.GlobalRating = &rating
		}
		participants = append(participants, info)
	}

	utils.WriteJsonResponse(w, participants)
}

func (s *AssignmentService) AssignableVendors(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkProjectExists(s.db, projectId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	assigned := s.db.Model(&schema.Assignment{}).Select("vendor_id").Where("project_id = ?", projectId)

	var vendors []schema.VendorProfile
	result := s.db.Where("id NOT IN (?)", assigned).
		Order("score IS NULL, score DESC").
		Find(&vendors)
	if result.Error != nil {
		slog.Error("sql error listing assignable vendors", "project_id", projectId, "error", result.Error)
		http.Error(w, "error listing assignable vendors", http.StatusInternalServerError)
		return
	}

	infos := make([]VendorInfo, 0, len(vendors))
	for _, vendor := range vendors {
		infos = append(infos, vendorInfo(vendor))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *AssignmentService) DownloadContract(w http.ResponseWriter, r *http.Request) {
	participationId, err := utils.URLParamUUID(r, "participation_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	assignment, err := schema.GetAssignment(participationId, s.db, false)
	if err != nil {
		if errors.Is(err, schema.ErrAssignmentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if assignment.ContractPath == nil {
		http.Error(w, "assignment has no contract on file", http.StatusNotFound)
		return
	}

	contract, err := s.storage.Read(*assignment.ContractPath)
	if err != nil {
		slog.Error("error reading contract from document store", "path", *assignment.ContractPath, "error", err)
		http.Error(w, "error reading contract", http.StatusInternalServerError)
		return
	}
	defer contract.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(*assignment.ContractPath)))
	if _, err := io.Copy(w, contract); err != nil {
		slog.Error("error streaming contract", "path", *assignment.ContractPath, "error", err)
	}
}

package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"vendorhub/vendorhub/auth"
	"vendorhub/vendorhub/schema"
	"vendorhub/vendorhub/storage"
	"vendorhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VendorService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *VendorService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)
	r.Get("/rankings", s.Rankings)
	r.Get("/{vendor_id}", s.GetVendor)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.CreateVendor)
		r.Delete("/{vendor_id}", s.DeleteVendor)
	})

	return r
}

type createVendorRequest struct {
	UserId      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

type VendorInfo struct {
	Id          uuid.UUID `json:"id"`
	UserId      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Score       *float64  `json:"score"`
}

func vendorInfo(vendor schema.VendorProfile) VendorInfo {
	return VendorInfo{
		Id:          vendor.Id,
		UserId:      vendor.UserId,
		DisplayName: vendor.DisplayName,
		Score:       vendor.Score,
	}
}

func (s *VendorService) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var params createVendorRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.DisplayName == "" {
		http.Error(w, "vendor display name must be specified", http.StatusUnprocessableEntity)
		return
	}

	newVendor := schema.VendorProfile{
		Id:          uuid.New(),
		UserId:      params.UserId,
		DisplayName: params.DisplayName,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkUserExists(txn, params.UserId); err != nil {
			return err
		}

		result := txn.Create(&newVendor)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return CodedError(fmt.Errorf("user %v already has a vendor profile", params.UserId), http.StatusConflict)
			}
			slog.Error("sql error creating vendor profile", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating vendor profile: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, vendorInfo(newVendor))
}

func (s *VendorService) List(w http.ResponseWriter, r *http.Request) {
	var vendors []schema.VendorProfile
	result := s.db.Order("display_name ASC").Find(&vendors)
	if result.Error != nil {
		slog.Error("sql error listing vendors", "error", result.Error)
		http.Error(w, "error listing vendors", http.StatusInternalServerError)
		return
	}

	infos := make([]VendorInfo, 0, len(vendors))
	for _, vendor := range vendors {
		infos = append(infos, vendorInfo(vendor))
	}

	utils.WriteJsonResponse(w, infos)
}

const defaultRankingSize = 10

// Rankings returns vendors ordered by score, best first. Vendors that have
// never been evaluated sort after all scored vendors.
func (s *VendorService) Rankings(w http.ResponseWriter, r *http.Request) {
	limit := defaultRankingSize
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := utils.ParsePositiveInt(value)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid value for query parameter 'limit': %v", err), http.StatusUnprocessableEntity)
			return
		}
		limit = parsed
	}

	var vendors []schema.VendorProfile
	result := s.db.Order("score IS NULL, score DESC, display_name ASC").Limit(limit).Find(&vendors)
	if result.Error != nil {
		slog.Error("sql error listing vendor rankings", "error", result.Error)
		http.Error(w, "error listing vendor rankings", http.StatusInternalServerError)
		return
	}

	infos := make([]VendorInfo, 0, len(vendors))
	for _, vendor := range vendors {
		infos = append(infos, vendorInfo(vendor))
	}

	utils.WriteJsonResponse(w, infos)
}

type vendorHistoryEntry struct {
	ProjectName  string    `json:"project_name"`
	Role         string    `json:"role"`
	GlobalRating float64   `json:"global_rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

type vendorDetailResponse struct {
	VendorInfo
	Username string               `json:"username"`
	History  []vendorHistoryEntry `json:"history"`
}

func (s *VendorService) GetVendor(w http.ResponseWriter, r *http.Request) {
	vendorId, err := utils.URLParamUUID(r, "vendor_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	vendor, err := schema.GetVendor(vendorId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrVendorNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	var assignments []schema.Assignment
	result := s.db.Preload("Project").Preload("Evaluation").
		Where("vendor_id = ?", vendorId).
		Find(&assignments)
	if result.Error != nil {
		slog.Error("sql error loading vendor history", "vendor_id", vendorId, "error", result.Error)
		http.Error(w, "error loading vendor history", http.StatusInternalServerError)
		return
	}

	history := make([]vendorHistoryEntry, 0, len(assignments))
	for _, assignment := range assignments {
		if assignment.Evaluation == nil {
			continue
		}
		history = append(history, vendorHistoryEntry{
			ProjectName:  assignment.Project.Name,
			Role:         assignment.Role,
			GlobalRating: assignment.Evaluation.GlobalRating,
			Comment:      assignment.Evaluation.Comment,
			CreatedAt:    assignment.Evaluation.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, vendorDetailResponse{
		VendorInfo: vendorInfo(vendor),
		Username:   vendor.User.Username,
		History:    history,
	})
}

func (s *VendorService) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	vendorId, err := utils.URLParamUUID(r, "vendor_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var contracts []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkVendorExists(txn, vendorId); err != nil {
			return err
		}

		var assignmentIds []uuid.UUID
		result := txn.Model(&schema.Assignment{}).Where("vendor_id = ?", vendorId).Pluck("id", &assignmentIds)
		if result.Error != nil {
			slog.Error("sql error collecting vendor assignments", "vendor_id", vendorId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		contracts, err = deleteAssignmentRows(txn, assignmentIds)
		if err != nil {
			return err
		}

		result = txn.Delete(&schema.VendorProfile{Id: vendorId})
		if result.Error != nil {
			slog.Error("sql error deleting vendor profile", "vendor_id", vendorId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting vendor profile: %v", err), GetResponseCode(err))
		return
	}

	for _, contract := range contracts {
		if err := s.storage.Delete(contract); err != nil {
			slog.Error("error deleting contract for removed vendor", "path", contract, "error", err)
		}
	}

	utils.WriteSuccess(w)
}

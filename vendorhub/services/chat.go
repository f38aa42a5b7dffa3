package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"vendorhub/vendorhub/auth"
	"vendorhub/vendorhub/llm"
	"vendorhub/vendorhub/schema"
	"vendorhub/vendorhub/storage"
	"vendorhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// ChatService backs the procurement assistant. Answers are grounded in the
// current vendor directory and project registry, both are serialized into the
// system prompt on every request.
type ChatService struct {
	db       *gorm.DB
	storage  storage.Storage
	llm      llm.Client
	userAuth auth.IdentityProvider
}

const chatRequestsPerMinute = 20

func (s *ChatService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)
	r.Use(httprate.LimitByIP(chatRequestsPerMinute, time.Minute))

	r.Post("/message", s.Message)
	r.Post("/tender", s.SummarizeTender)

	return r
}

func (s *ChatService) systemPrompt() (string, error) {
	var vendors []schema.VendorProfile
	result := s.db.Order("score IS NULL, score DESC").Limit(50).Find(&vendors)
	if result.Error != nil {
		slog.Error("sql error loading vendors for assistant context", "error", result.Error)
		return "", schema.ErrDbAccessFailed
	}

	var projects []schema.Project
	result = s.db.Order("start_date DESC").Limit(50).Find(&projects)
	if result.Error != nil {
		slog.Error("sql error loading projects for assistant context", "error", result.Error)
		return "", schema.ErrDbAccessFailed
	}

	var prompt strings.Builder
	prompt.WriteString("You are the assistant for a vendor management platform. ")
	prompt.WriteString("Answer questions about vendors and projects using only the data below. ")
	prompt.WriteString("If the data does not contain the answer, say so.\n\nVendors:\n")
	for _, vendor := range vendors {
		if vendor.Score != nil {
			fmt.Fprintf(&prompt, "- %v (score %.2f)\n", vendor.DisplayName, *vendor.Score)
		} else {
			fmt.Fprintf(&prompt, "- %v (not yet evaluated)\n", vendor.DisplayName)
		}
	}
	prompt.WriteString("\nProjects:\n")
	for _, project := range projects {
		fmt.Fprintf(&prompt, "- %v for %v [%v]\n", project.Name, project.Client, schema.NormalizeStatus(project.Status))
	}

	return prompt.String(), nil
}

type chatMessageRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

type chatMessageResponse struct {
	Answer  string        `json:"answer"`
	History []llm.Message `json:"history"`
}

func (s *ChatService) Message(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(chatMessageMetric)
	defer timer.ObserveDuration()

	if s.llm == nil {
		http.Error(w, "assistant is not configured", http.StatusServiceUnavailable)
		return
	}

	var params chatMessageRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Message == "" {
		http.Error(w, "message must be specified", http.StatusUnprocessableEntity)
		return
	}

	systemPrompt, err := s.systemPrompt()
	if err != nil {
		http.Error(w, "error building assistant context", http.StatusInternalServerError)
		return
	}

	history := append(params.History, llm.Message{Role: llm.RoleUser, Content: params.Message})

	answer, err := s.llm.Complete(r.Context(), systemPrompt, history)
	if err != nil {
		slog.Error("error generating assistant response", "error", err)
		http.Error(w, "error generating assistant response", http.StatusBadGateway)
		return
	}

	history = append(history, llm.Message{Role: llm.RoleAssistant, Content: answer})

	utils.WriteJsonResponse(w, chatMessageResponse{Answer: answer, History: history})
}

type summarizeTenderResponse struct {
	UploadId uuid.UUID `json:"upload_id"`
	Path     string    `json:"path"`
	Summary  string    `json:"summary"`
}

// SummarizeTender stores an uploaded tender document and asks the assistant
// for a summary of the supplied tender text. Text extraction from the
// document happens client side, the server treats the file as an opaque blob.
func (s *ChatService) SummarizeTender(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		http.Error(w, "assistant is not configured", http.StatusServiceUnavailable)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("error parsing multipart request: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("tender")
	if err != nil {
		http.Error(w, "tender file must be provided", http.StatusUnprocessableEntity)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		http.Error(w, "tender document must be a pdf file", http.StatusUnprocessableEntity)
		return
	}

	text := r.FormValue("text")
	if text == "" {
		http.Error(w, "tender text must be provided", http.StatusUnprocessableEntity)
		return
	}

	uploadId := uuid.New()
	path := storage.TenderPath(uploadId, filepath.Base(header.Filename))
	if err := s.storage.Write(path, file); err != nil {
		slog.Error("error saving uploaded tender", "error", err)
		http.Error(w, "error saving uploaded tender", http.StatusInternalServerError)
		return
	}

	systemPrompt, err := s.systemPrompt()
	if err != nil {
		http.Error(w, "error building assistant context", http.StatusInternalServerError)
		return
	}
	systemPrompt += "\nSummarize the tender document provided by the user. Highlight scope, deadlines, and which vendors in the directory look like a fit."

	summary, err := s.llm.Complete(r.Context(), systemPrompt, []llm.Message{{Role: llm.RoleUser, Content: text}})
	if err != nil {
		slog.Error("error summarizing tender", "error", err)
		http.Error(w, "error summarizing tender", http.StatusBadGateway)
		return
	}

	utils.WriteJsonResponse(w, summarizeTenderResponse{UploadId: uploadId, Path: path, Summary: summary})
}

package services

import (
	"log"
	"net/http"
	"os"
	"vendorhub/vendorhub/auth"
	"vendorhub/vendorhub/llm"
	"vendorhub/vendorhub/storage"
	"vendorhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type VendorHub struct {
	user       UserService
	project    ProjectService
	assignment AssignmentService
	evaluation EvaluationService
	metric     MetricService
	vendor     VendorService
	chat       ChatService

	db *gorm.DB
}

func NewVendorHub(
	db *gorm.DB, store storage.Storage, llmClient llm.Client, userAuth auth.IdentityProvider,
) VendorHub {
	return VendorHub{
		user:       UserService{db: db, storage: store, userAuth: userAuth},
		project:    ProjectService{db: db, storage: store, userAuth: userAuth},
		assignment: AssignmentService{db: db, storage: store, userAuth: userAuth},
		evaluation: EvaluationService{db: db, userAuth: userAuth},
		metric:     MetricService{db: db, userAuth: userAuth},
		vendor:     VendorService{db: db, storage: store, userAuth: userAuth},
		chat:       ChatService{db: db, storage: store, llm: llmClient, userAuth: userAuth},
		db:         db,
	}
}

func (v *VendorHub) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", v.user.Routes())
	r.Mount("/project", v.project.Routes())
	r.Mount("/participation", v.assignment.Routes())
	r.Mount("/evaluation", v.evaluation.Routes())
	r.Mount("/metric", v.metric.Routes())
	r.Mount("/vendor", v.vendor.Routes())
	r.Mount("/chat", v.chat.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

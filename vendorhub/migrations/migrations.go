package migrations

import (
	"vendorhub/vendorhub/schema"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func allModels() []interface{} {
	return []interface{}{
		&schema.User{}, &schema.VendorProfile{}, &schema.Project{},
		&schema.Assignment{}, &schema.Evaluation{}, &schema.EvaluationDetail{},
		&schema.Metric{},
	}
}

// Run applies all pending migrations. The unique indexes created with the
// initial schema are the real guards against duplicate assignments and
// duplicate evaluations, application level checks only improve the error
// message.
func Run(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20260901_initial_schema",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(allModels()...)
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(allModels()...)
			},
		},
	})

	m.InitSchema(func(txn *gorm.DB) error {
		return txn.AutoMigrate(allModels()...)
	})

	return m.Migrate()
}

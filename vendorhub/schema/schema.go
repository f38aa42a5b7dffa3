package schema

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	Vendor *VendorProfile
}

type VendorProfile struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE"`

	DisplayName string `gorm:"size:100;not null"`

	// Score is nil until the vendor's first evaluation is recorded. After that it
	// always holds the mean of the vendor's evaluation global ratings (0.0 for an
	// empty rating set).
	Score *float64

	Assignments []Assignment `gorm:"foreignKey:VendorId;constraint:OnDelete:CASCADE"`
}

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Client string `gorm:"size:100;not null"`
	Name   string `gorm:"size:100;not null"`

	Description string
	TechStack   string `gorm:"size:100"`

	StartDate time.Time `gorm:"not null"`
	EndDate   *time.Time

	Status string `gorm:"size:50;not null;default:'planned'"`

	Assignments []Assignment `gorm:"constraint:OnDelete:CASCADE"`
}

type Assignment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProjectId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_project_vendor"`
	VendorId  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_project_vendor"`

	Project *Project       `gorm:"constraint:OnDelete:CASCADE"`
	Vendor  *VendorProfile `gorm:"foreignKey:VendorId;constraint:OnDelete:CASCADE"`

	Role string `gorm:"size:100;not null"`

	StartDate *time.Time
	EndDate   *time.Time

	ContractPath *string `gorm:"size:500"`

	Evaluation *Evaluation `gorm:"foreignKey:AssignmentId;constraint:OnDelete:CASCADE"`
}

type Evaluation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	AssignmentId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	EvaluatorId  uuid.UUID `gorm:"type:uuid;not null"`

	Comment      string  `gorm:"not null"`
	GlobalRating float64 `gorm:"not null"`

	CreatedAt time.Time

	Details []EvaluationDetail `gorm:"constraint:OnDelete:CASCADE"`
}

// EvaluationDetail rows intentionally carry no foreign key to Metric: deleting a
// metric leaves historical ratings in place.
type EvaluationDetail struct {
	EvaluationId uuid.UUID `gorm:"type:uuid;primaryKey"`
	MetricId     uuid.UUID `gorm:"type:uuid;primaryKey"`

	Value int `gorm:"not null"`
}

type Metric struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name  string `gorm:"size:100;not null"`
	Notes string
}

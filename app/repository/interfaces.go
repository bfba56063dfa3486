package repository

import (
	"github.com/eduflow-br/eduflow/app/models"
)

// StudentRepository defines the interface for student-related database operations
type StudentRepository interface {
	Create(student *models.Student) error
	GetByID(id uint) (*models.Student, error)
	GetByEmail(email string) (*models.Student, error)
	Update(student *models.Student) error
	List(offset, limit int) ([]models.Student, error)
	Count() (int64, error)
}

// PlanRepository defines the interface for plan-related database operations
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	GetByUUID(uuid string) (*models.Plan, error)
	GetActive() ([]models.Plan, error)
	GetAll() ([]models.Plan, error)
	Update(plan *models.Plan) error
	Deactivate(id uint) error
}

// Repositories holds all repository instances
type Repositories struct {
	Student StudentRepository
	Plan    PlanRepository
}

package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codetrack/backend/internal/domain"
)

// userRepository implements domain.UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new account
func (r *userRepository) Create(user *domain.User) error {
	if err := r.db.Create(user).Error; err != nil {
		// Unique index on username and email
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID finds a user by their ID
func (r *userRepository) FindByID(id uuid.UUID) (*domain.User, error) {
	return r.findOne("id = ?", id)
}

// FindByUsername finds a user by their login name
func (r *userRepository) FindByUsername(username string) (*domain.User, error) {
	return r.findOne("username = ?", username)
}

// FindByEmail finds a user by their email address
func (r *userRepository) FindByEmail(email string) (*domain.User, error) {
	return r.findOne("email = ?", email)
}

// Update persists changes to an existing user
func (r *userRepository) Update(user *domain.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) findOne(query string, arg interface{}) (*domain.User, error) {
	var user domain.User
	if err := r.db.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

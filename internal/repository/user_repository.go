package repository

import (
	"context"
	"companion-api/internal/models"
	"companion-api/internal/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByClerkID(ctx context.Context, clerkUserID string) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateMembership(ctx context.Context, clerkUserID string, membership models.Membership) error
	Delete(ctx context.Context, clerkUserID string) error
	WithLockedUser(ctx context.Context, id uuid.UUID, fn func(user *models.User) (save bool, err error)) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to create user")
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get user by ID")
	}

	return &user, nil
}

func (r *userRepository) GetByClerkID(ctx context.Context, clerkUserID string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "clerk_user_id = ?", clerkUserID)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get user by clerk ID")
	}

	return &user, nil
}

func (r *userRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "stripe_customer_id = ?", customerID)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get user by stripe customer ID")
	}

	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Save(user)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update user")
	}

	return nil
}

func (r *userRepository) UpdateMembership(ctx context.Context, clerkUserID string, membership models.Membership) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("clerk_user_id = ?", clerkUserID).
		Update("membership", membership)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update membership")
	}

	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}

	return nil
}

func (r *userRepository) Delete(ctx context.Context, clerkUserID string) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, "clerk_user_id = ?", clerkUserID)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete user")
	}

	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}

	return nil
}

// WithLockedUser runs fn inside a transaction holding a FOR UPDATE lock on
// the user row, saving the row back when fn asks for it. Credit debits and
// refills go through here so concurrent requests for one account serialize
// instead of double-spending.
func (r *userRepository) WithLockedUser(ctx context.Context, id uuid.UUID, fn func(user *models.User) (bool, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", id).Error

		if err == gorm.ErrRecordNotFound {
			return errors.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "failed to lock user row")
		}

		save, err := fn(&user)
		if err != nil {
			return err
		}
		if save {
			if err := tx.Save(&user).Error; err != nil {
				return errors.Wrap(err, "failed to save user")
			}
		}
		return nil
	})
}

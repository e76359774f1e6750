package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"

	"snaplink/internal/models"
	"snaplink/internal/repository"
	"snaplink/pkg/utils"

	"gorm.io/gorm"
)

// UserService manages the locally stored view of accounts: the flags the
// core trusts plus the API key used as a credential.
type UserService struct {
	db       *gorm.DB
	cache    LinkCache
	notifier *Notifier
	logger   *slog.Logger
	clock    Clock
}

func NewUserService(db *gorm.DB, cache LinkCache, notifier *Notifier, logger *slog.Logger, clock Clock) *UserService {
	return &UserService{db: db, cache: cache, notifier: notifier, logger: logger, clock: clock}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", validationErrorf("email must not be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationErrorf("email is not valid")
	}
	return email, nil
}

// Create registers an active account with a fresh API key.
func (s *UserService) Create(ctx context.Context, email string, superuser bool) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:       email,
		APIKey:      utils.GenerateAPIKey(),
		IsActive:    true,
		IsSuperuser: superuser,
		CreatedAt:   s.clock(),
	}
	err = s.db.WithContext(ctx).Create(&user).Error
	if repository.IsUniqueViolation(err) {
		return nil, validationErrorf("email already registered")
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// EnsureAdmin makes sure a superuser with the given email exists, promoting
// and re-activating an existing account if needed.
func (s *UserService) EnsureAdmin(ctx context.Context, email string) (*models.User, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, false, err
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&user).Error
	if err != nil {
		return nil, false, fmt.Errorf("load admin: %w", err)
	}
	if user.ID == 0 {
		created, err := s.Create(ctx, email, true)
		return created, true, err
	}

	if !user.IsSuperuser || !user.IsActive {
		err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
			"is_superuser": true,
			"is_active":    true,
		}).Error
		if err != nil {
			return nil, false, fmt.Errorf("promote admin: %w", err)
		}
		user.IsSuperuser, user.IsActive = true, true
	}
	return &user, false, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (s *UserService) FindByAPIKey(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("api_key = ?", key).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user by api key: %w", err)
	}
	return &user, nil
}

// List returns every account ordered by id. Superusers only.
func (s *UserService) List(ctx context.Context, actor Principal) ([]models.User, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetActive toggles an account. An admin cannot deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, actor Principal, id uint, active bool) (*models.User, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	if actor.ID == id && !active {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", ErrPermissionDenied)
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	user.IsActive = active

	s.notifier.Notify(&actor.ID, EventUserStatus, strconv.FormatUint(uint64(id), 10), map[string]interface{}{
		"is_active": active,
	})
	return user, nil
}

// Delete removes an account with all of its links and their clicks in one
// transaction. A regular user may only delete themselves; an admin may
// delete anyone except themselves.
func (s *UserService) Delete(ctx context.Context, actor Principal, id uint) error {
	switch {
	case actor.IsSuperuser && actor.ID == id:
		return fmt.Errorf("%w: cannot delete your own admin account", ErrPermissionDenied)
	case !actor.IsSuperuser && actor.ID != id:
		return ErrPermissionDenied
	}

	var codes []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var links []models.Link
		if err := tx.Select("id", "short_code").Where("owner_id = ?", id).Find(&links).Error; err != nil {
			return err
		}
		if len(links) > 0 {
			ids := make([]uint, len(links))
			for i, l := range links {
				ids[i] = l.ID
				codes = append(codes, l.ShortCode)
			}
			if err := tx.Where("link_id IN ?", ids).Delete(&models.Click{}).Error; err != nil {
				return err
			}
			if err := tx.Where("owner_id = ?", id).Delete(&models.Link{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if s.cache != nil && len(codes) > 0 {
		if err := s.cache.Delete(ctx, codes...); err != nil {
			s.logger.Warn("Link cache invalidation failed", "user_id", id, "error", err)
		}
	}
	s.notifier.Notify(&actor.ID, EventUserDeleted, strconv.FormatUint(uint64(id), 10), map[string]interface{}{
		"links_deleted": len(codes),
	})
	return nil
}

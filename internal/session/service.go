package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Service validates sessions against the parameter catalog and delegates
// storage to a Repository.
type Service struct {
	repo     Repository
	catalog  *params.Catalog
	validate *validator.Validate
	log      *logrus.Entry
	now      func() time.Time
	newID    func() string
}

func NewService(repo Repository, catalog *params.Catalog, log *logrus.Entry) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
	}
}

// Save validates s and stores it under a fresh id, which it returns. The
// value set must be complete for s.Category with every value in range and on
// its step grid. A ParentID must reference an existing session.
func (svc *Service) Save(ctx context.Context, s Session) (string, error) {
	if err := svc.validate.Struct(&s); err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := svc.catalog.Validate(s.Snapshot()); err != nil {
		return "", err
	}
	if s.ParentID != "" {
		if _, err := svc.repo.Get(ctx, s.ParentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return "", fmt.Errorf("%w: parent session %q does not exist", ErrValidation, s.ParentID)
			}
			return "", fmt.Errorf("checking parent session: %w", err)
		}
	}

	stored := s.clone()
	stored.ID = svc.newID()
	stored.CreatedAt = svc.now().UTC().Truncate(time.Microsecond)
	if err := svc.repo.Insert(ctx, stored); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}

	svc.log.WithFields(logrus.Fields{
		"session":  stored.ID,
		"owner":    stored.OwnerRef,
		"category": stored.Category,
		"parent":   stored.ParentID,
	}).Info("session saved")
	return stored.ID, nil
}

// List returns the owner's sessions, newest first.
func (svc *Service) List(ctx context.Context, owner string) ([]Metadata, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	return svc.repo.ListByOwner(ctx, owner)
}

// Load returns the full session.
func (svc *Service) Load(ctx context.Context, id string) (*Session, error) {
	return svc.repo.Get(ctx, id)
}

// Delete removes a session owned by owner.
func (svc *Service) Delete(ctx context.Context, id, owner string) error {
	if owner == "" {
		return fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if err := svc.repo.Delete(ctx, id, owner); err != nil {
		return err
	}
	svc.log.WithFields(logrus.Fields{"session": id, "owner": owner}).Info("session deleted")
	return nil
}

// Catalog returns the catalog sessions are validated against.
func (svc *Service) Catalog() *params.Catalog { return svc.catalog }

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/pkg/auth"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/security"
)

// DefaultStaff is seeded into an empty staff table.
var DefaultStaff = []model.Staff{
	{Username: "enfermeiro", Name: "Enfermeiro(a) Silva", Role: model.RoleNurse},
	{Username: "medico", Name: "Dr(a). Santos", Role: model.RoleDoctor},
	{Username: "gestor", Name: "Gestor(a) Oliveira", Role: model.RoleManager},
}

type Service struct {
	staffRepo repository.StaffRepository
	jwtSvc    auth.JWTService
	hasher    security.PasswordHasher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(staffRepo repository.StaffRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, logger zerolog.Logger) *Service {
	return &Service{
		staffRepo: staffRepo,
		jwtSvc:    jwtSvc,
		hasher:    hasher,
		logger:    logger,
		now:       time.Now,
	}
}

// Login checks the password and issues an access token. Unknown users and
// wrong passwords return the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	staff, err := s.staffRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load staff: %w", err)
	}
	if staff == nil {
		s.logger.Info().Str("username", username).Msg("login failed: unknown user")
		return nil, apperrors.Unauthorized(fmt.Errorf("invalid credentials"))
	}
	if err := s.hasher.Compare(staff.PasswordHash, password); err != nil {
		s.logger.Info().Str("username", username).Msg("login failed: wrong password")
		return nil, apperrors.Unauthorized(fmt.Errorf("invalid credentials"))
	}

	token, exp, err := s.jwtSvc.GenerateAccessToken(staff)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info().
		Str("staff_id", staff.ID.String()).
		Str("role", string(staff.Role)).
		Msg("staff logged in")

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(exp.Sub(s.now()).Seconds()),
		Staff:       staff,
	}, nil
}

func (s *Service) ValidateToken(_ context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}

// SeedDefaultStaff creates the default accounts when no staff exists yet.
// It reports how many were created.
func (s *Service) SeedDefaultStaff(ctx context.Context, password string) (int, error) {
	n, err := s.staffRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count staff: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash default password: %w", err)
	}

	created := 0
	for _, d := range DefaultStaff {
		staff := d
		staff.PasswordHash = hash
		if err := s.staffRepo.Create(ctx, &staff); err != nil {
			if apperrors.Is(err, apperrors.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("failed to seed %s: %w", staff.Username, err)
		}
		created++
	}

	s.logger.Warn().Int("count", created).Msg("seeded default staff accounts; change their passwords")
	return created, nil
}

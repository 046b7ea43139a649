package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/repository"
)

const minPasswordLength = 8

// dummyPasswordHash iguala el coste de bcrypt cuando el usuario no existe.
var dummyPasswordHash, _ = bcrypt.GenerateFromPassword([]byte("annotation-auth-timing"), bcrypt.DefaultCost)

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	tenants repository.TenantProvisioner
	now     func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, tenants repository.TenantProvisioner) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:  logger,
		users:   users,
		tenants: tenants,
		now:     systemClock,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	if !looksLikeEmail(emailAddr) {
		return domain.User{}, domain.BadRequest("a valid email is required")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return domain.User{}, domain.BadRequest("name is required")
	}
	if len(input.Password) < minPasswordLength {
		return domain.User{}, domain.BadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.create(ctx, emailAddr, displayName, string(hash))
}

// CreatePasswordless crea una cuenta sin contraseña para el flujo de magic link.
func (s *UserService) CreatePasswordless(ctx context.Context, emailAddr, displayName string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if !looksLikeEmail(emailAddr) {
		return domain.User{}, domain.BadRequest("a valid email is required")
	}
	return s.create(ctx, emailAddr, strings.TrimSpace(displayName), "")
}

func (s *UserService) create(ctx context.Context, emailAddr, displayName, passwordHash string) (domain.User, error) {
	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, domain.Conflict("an account with this email already exists")
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.tenants != nil {
		if err := s.tenants.ProvisionDefaultTenant(ctx, user.ID, tenantName(user)); err != nil {
			s.logger.Error("provision default tenant failed", zap.Error(err), zap.String("user_id", user.ID))
			return domain.User{}, fmt.Errorf("provision default tenant: %w", err)
		}
	}
	return user, nil
}

// Authenticate devuelve el mismo Unauthorized para usuario inexistente, cuenta
// sin contraseña o contraseña incorrecta.
func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, domain.Unauthorized("invalid credentials")
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return domain.User{}, domain.Unauthorized("invalid credentials")
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		return domain.User{}, domain.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.Unauthorized("invalid credentials")
	}
	return user, nil
}

// FindByEmail devuelve found=false sin error cuando no existe.
func (s *UserService) FindByEmail(ctx context.Context, emailAddr string) (domain.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, true, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NotFound("user not found")
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id, displayName string) (domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.User{}, domain.BadRequest("name is required")
	}
	if err := s.users.UpdateProfile(ctx, id, displayName, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NotFound("user not found")
		}
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SessionTerminator cierra todas las sesiones de un usuario.
type SessionTerminator interface {
	DestroyAll(ctx context.Context, userID string) error
}

// DeleteAccount revoca las sesiones antes de borrar al usuario.
func (s *UserService) DeleteAccount(ctx context.Context, id string, sessions SessionTerminator) error {
	if sessions != nil {
		if err := sessions.DestroyAll(ctx, id); err != nil {
			return err
		}
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound("user not found")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("account deleted", zap.String("user_id", id))
	return nil
}

func tenantName(user domain.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	local, _, _ := strings.Cut(user.Email, "@")
	return local
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func looksLikeEmail(email string) bool {
	local, domainPart, ok := strings.Cut(email, "@")
	return ok && local != "" && strings.Contains(domainPart, ".") && !strings.ContainsAny(email, " \t\r\n")
}

// MaskEmail deja visibles los dos primeros caracteres de la parte local.
func MaskEmail(email string) string {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return local[:keep] + "***@" + domainPart
}

// Package auth drives login, signup, and logout for the buyer role. Token
// issuance is entirely server-side; this package validates input, forwards
// credentials, and hands the raw response to the session manager.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/session"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

// API is the backend surface auth depends on.
type API interface {
	BuyerLogin(ctx context.Context, req api.LoginRequest) (json.RawMessage, error)
	BuyerSignUp(ctx context.Context, req api.SignUpRequest) (json.RawMessage, error)
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type SignUpInput struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"required,min=7"`
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	API      API
	Sessions *session.Manager
	Logger   *logger.Logger
}

type Service struct {
	api      API
	sessions *session.Manager
	validate *validator.Validate
	logg     *logger.Logger
}

// NewService builds the auth service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auth api is required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auth session manager is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auth logger is required")
	}
	return &Service{
		api:      params.API,
		sessions: params.Sessions,
		validate: newValidator(),
		logg:     params.Logger,
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Login authenticates the buyer and installs the resulting session, which
// cascades into cart/wishlist re-syncs through the session listeners.
func (s *Service) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	if err := s.validate.Struct(creds); err != nil {
		return nil, formatValidationErrors(err)
	}
	raw, err := s.api.BuyerLogin(ctx, api.LoginRequest{
		Email:    strings.TrimSpace(strings.ToLower(creds.Email)),
		Password: creds.Password,
	})
	if err != nil {
		return nil, err
	}
	return s.sessions.Save(ctx, session.RoleBuyer, raw)
}

// SignUp registers a buyer account and installs the resulting session.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*session.Session, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, formatValidationErrors(err)
	}
	raw, err := s.api.BuyerSignUp(ctx, api.SignUpRequest{
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.TrimSpace(strings.ToLower(input.Email)),
		Password: input.Password,
		Phone:    strings.TrimSpace(input.Phone),
	})
	if err != nil {
		return nil, err
	}
	return s.sessions.Save(ctx, session.RoleBuyer, raw)
}

// Logout clears the session; collection listeners empty themselves in turn.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

package service

import (
	"context"
	"errors"
	"log/slog"

	"akinmueble/internal/middleware"
	"akinmueble/internal/models"
	"akinmueble/internal/notifications"
	"akinmueble/internal/repository"
	"akinmueble/internal/security"
)

// ErrNoSystemVariables is returned when the administrator contact has not
// been configured.
var ErrNoSystemVariables = errors.New("no system variables to perform the process")

// CredentialIssuer creates login credentials in the identity service.
type CredentialIssuer interface {
	IssueCredentials(ctx context.Context, person models.Person, role security.Role, token string) (bool, error)
}

// ApplicationService handles adviser applications, client registration and
// the public contact forms.
type ApplicationService struct {
	store    *repository.Store
	mailer   Mailer
	identity CredentialIssuer
}

// NewApplicationService returns a new ApplicationService.
func NewApplicationService(store *repository.Store, mailer Mailer, identity CredentialIssuer) *ApplicationService {
	return &ApplicationService{store: store, mailer: mailer, identity: identity}
}

// SendAdviserApplication forwards an adviser application to the administrator.
func (s *ApplicationService) SendAdviserApplication(ctx context.Context, form models.AdviserForm) (string, error) {
	return s.forward(ctx, notifications.SubjectAdviserApplicant, models.ContactForm(form))
}

// SendContactForm forwards a website contact form to the administrator.
func (s *ApplicationService) SendContactForm(ctx context.Context, form models.ContactForm) (string, error) {
	return s.forward(ctx, notifications.SubjectContactForm, form)
}

func (s *ApplicationService) forward(ctx context.Context, subject string, form models.ContactForm) (string, error) {
	vars, err := s.store.CurrentSystemVariables(ctx)
	if err != nil {
		return "", err
	}
	if vars == nil {
		return "", models.NewInternalError(ErrNoSystemVariables)
	}
	return s.mailer.Email(ctx, notifications.FormEmail(vars, subject, form)), nil
}

// AcceptAdviserApplication marks the adviser accepted, issues credentials
// with the adviser role and emails the answer.
func (s *ApplicationService) AcceptAdviserApplication(ctx context.Context, adviserID uint, token, message string) (*models.Adviser, error) {
	adviser, err := s.store.Advisers.GetByID(ctx, adviserID)
	if err != nil {
		return nil, err
	}

	ok, err := s.identity.IssueCredentials(ctx, adviser.Person, security.RoleAdviser, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewUpstreamError("security", errors.New("credentials were not issued"))
	}

	adviser, err = s.store.Advisers.Update(ctx, adviserID, map[string]any{"accepted": true})
	if err != nil {
		return nil, err
	}
	s.mailer.Email(ctx, notifications.ApplicationAnswerEmail(adviser, true, message))
	return adviser, nil
}

// RejectAdviserApplication emails the adviser that the application was declined.
func (s *ApplicationService) RejectAdviserApplication(ctx context.Context, adviserID uint, message string) (*models.Adviser, error) {
	adviser, err := s.store.Advisers.GetByID(ctx, adviserID)
	if err != nil {
		return nil, err
	}
	if adviser.Accepted {
		adviser, err = s.store.Advisers.Update(ctx, adviserID, map[string]any{"accepted": false})
		if err != nil {
			return nil, err
		}
	}
	s.mailer.Email(ctx, notifications.ApplicationAnswerEmail(adviser, false, message))
	return adviser, nil
}

// RegisterClient stores the client and asks the identity service for their
// login. The client row is kept when issuing credentials fails.
func (s *ApplicationService) RegisterClient(ctx context.Context, client *models.Client, token string) error {
	if client.Email == "" || client.Document == "" {
		return models.NewValidationError("document and email are required")
	}
	if err := s.store.Clients.Create(ctx, client); err != nil {
		return err
	}

	ok, err := s.identity.IssueCredentials(ctx, client.Person, security.RoleClient, token)
	if err != nil || !ok {
		attrs := []any{slog.Uint64("client_id", uint64(client.ID))}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		middleware.Logger.WarnContext(ctx, "client credentials not issued", attrs...)
	}
	return nil
}

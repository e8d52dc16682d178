// Package service holds the brokerage business logic.
package service

import (
	"context"
	"log/slog"
	"time"

	"akinmueble/internal/middleware"
	"akinmueble/internal/models"
	"akinmueble/internal/notifications"
	"akinmueble/internal/observability"
	"akinmueble/internal/repository"

	"github.com/google/uuid"
)

// Mailer queues outbound email. *notifications.Dispatcher satisfies it.
type Mailer interface {
	Email(ctx context.Context, msg notifications.Email) string
}

// EventPublisher broadcasts request lifecycle events.
type EventPublisher interface {
	PublishRequestEvent(ctx context.Context, ev notifications.RequestEvent) error
}

// RequestService runs the request lifecycle.
type RequestService struct {
	store  *repository.Store
	mailer Mailer
	events EventPublisher
}

// CreateRequestInput is what a client may choose when opening a request.
// Adviser, status, contract and guarantor are always derived.
type CreateRequestInput struct {
	ClientID      uint
	PropertyID    uint
	RequestTypeID models.RequestType
	Comment       string
	RentalEndDate *time.Time
}

// EditRequestInput carries the fields the generic request routes may change.
type EditRequestInput struct {
	Comment       *string
	RentalEndDate *time.Time
}

// NewRequestService returns a new RequestService. events may be nil.
func NewRequestService(store *repository.Store, mailer Mailer, events EventPublisher) *RequestService {
	return &RequestService{store: store, mailer: mailer, events: events}
}

// CreateRequest opens a Sent request on behalf of a client and tells the
// property's adviser.
func (s *RequestService) CreateRequest(ctx context.Context, in CreateRequestInput) (req *models.Request, err error) {
	ctx, span := observability.StartWorkflowSpan(ctx, "CreateRequest", 0)
	defer func() { observability.EndSpan(span, err) }()

	if !in.RequestTypeID.Valid() {
		return nil, models.NewValidationError("requestTypeId must be 1 (sale) or 2 (rent)")
	}
	property, err := s.store.Properties.GetByID(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	client, err := s.store.Clients.GetByID(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}

	req = &models.Request{
		Date:            time.Now().UTC(),
		Comment:         in.Comment,
		RentalEndDate:   in.RentalEndDate,
		AdviserID:       property.AdviserID,
		ClientID:        client.ID,
		PropertyID:      property.ID,
		RequestTypeID:   in.RequestTypeID,
		RequestStatusID: models.StatusSent,
	}
	if err := s.store.Requests.Create(ctx, req); err != nil {
		return nil, err
	}

	adviser, err := s.store.Advisers.GetByID(ctx, property.AdviserID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "request created without adviser notification",
			slog.Uint64("request_id", uint64(req.ID)),
			slog.String("error", err.Error()),
		)
	} else {
		s.mailer.Email(ctx, notifications.NewRequestEmail(adviser, client, property, req.RequestTypeID))
	}
	s.publish(ctx, notifications.EventRequestCreated, req)
	return req, nil
}

// CancelByClient deletes the request when it belongs to clientID and is still
// Sent. Every other case reports false and changes nothing.
func (s *RequestService) CancelByClient(ctx context.Context, requestID, clientID uint) (ok bool, err error) {
	ctx, span := observability.StartWorkflowSpan(ctx, "CancelByClient", requestID)
	defer func() { observability.EndSpan(span, err) }()

	var cancelled *models.Request
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		r, err := tx.Requests.GetForUpdate(ctx, requestID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return nil
			}
			return err
		}
		if r.ClientID != clientID || r.RequestStatusID != models.StatusSent {
			return nil
		}
		if err := tx.Requests.Delete(ctx, r.ID); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled == nil {
		return false, nil
	}

	observability.RequestTransitions.WithLabelValues(cancelled.RequestStatusID.String(), models.StatusCancelled.String()).Inc()
	cancelled.RequestStatusID = models.StatusCancelled
	s.publish(ctx, notifications.EventRequestCancelled, cancelled)
	return true, nil
}

// DeleteRequest removes a request that is still Sent. Requests that have
// entered the workflow are kept for the history and yield a conflict.
func (s *RequestService) DeleteRequest(ctx context.Context, requestID uint) (err error) {
	ctx, span := observability.StartWorkflowSpan(ctx, "DeleteRequest", requestID)
	defer func() { observability.EndSpan(span, err) }()

	var deleted *models.Request
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		r, err := tx.Requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if r.RequestStatusID != models.StatusSent {
			return models.NewConflictError("only Sent requests can be deleted")
		}
		if err := tx.Requests.Delete(ctx, r.ID); err != nil {
			return err
		}
		deleted = r
		return nil
	})
	if err != nil {
		return err
	}

	observability.RequestTransitions.WithLabelValues(deleted.RequestStatusID.String(), models.StatusCancelled.String()).Inc()
	deleted.RequestStatusID = models.StatusCancelled
	s.publish(ctx, notifications.EventRequestCancelled, deleted)
	return nil
}

// ChangeStatus moves a request along the lifecycle. Repeating the current
// status returns the request untouched. Accepting requires that no other
// request on the property is accepted.
func (s *RequestService) ChangeStatus(ctx context.Context, requestID uint, status models.RequestStatus, comment string) (req *models.Request, err error) {
	ctx, span := observability.StartWorkflowSpan(ctx, "ChangeStatus", requestID)
	defer func() { observability.EndSpan(span, err) }()

	if !status.Valid() {
		return nil, models.NewValidationError("unknown request status")
	}

	var from models.RequestStatus
	changed := false
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		req = r
		from = r.RequestStatusID
		if from == status {
			return nil
		}
		if !from.CanTransitionTo(status) {
			return models.NewConflictError("cannot move request from " + from.String() + " to " + status.String())
		}

		if status.IsAccepted() {
			competing, err := tx.Requests.FindAcceptedOnProperty(ctx, r.PropertyID, r.ID)
			if err != nil {
				return err
			}
			if competing != nil {
				return models.NewConflictError("another request on this property is already accepted")
			}
			if r.ContractID == nil {
				contract := &models.Contract{Code: uuid.NewString()}
				if err := tx.Contracts.Create(ctx, contract); err != nil {
					return err
				}
				r.ContractID = &contract.ID
			}
		}

		r.RequestStatusID = status
		r.Comment = comment
		if err := tx.Requests.Save(ctx, r); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return req, nil
	}

	observability.RequestTransitions.WithLabelValues(from.String(), status.String()).Inc()
	if status.NotifiesClient() {
		s.notifyClient(ctx, req, func(c *models.Client) notifications.Email {
			return notifications.StatusChangedEmail(c, req, comment)
		})
	}
	s.publish(ctx, notifications.EventRequestStatusChanged, req)
	return req, nil
}

// AssignGuarantor records the guarantor and accepts the request. It reports
// false when either side is missing, the request is not under study or
// already accepted, or another request on the property holds the accept.
func (s *RequestService) AssignGuarantor(ctx context.Context, requestID, guarantorID uint) (ok bool, err error) {
	ctx, span := observability.StartWorkflowSpan(ctx, "AssignGuarantor", requestID)
	defer func() { observability.EndSpan(span, err) }()

	var (
		req  *models.Request
		from models.RequestStatus
	)
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return ignoreNotFound(err)
		}
		if _, err := tx.Guarantors.GetByID(ctx, guarantorID); err != nil {
			return ignoreNotFound(err)
		}
		if r.RequestStatusID != models.StatusInStudy && !r.RequestStatusID.IsAccepted() {
			return nil
		}
		competing, err := tx.Requests.FindAcceptedOnProperty(ctx, r.PropertyID, r.ID)
		if err != nil {
			return err
		}
		if competing != nil {
			return nil
		}

		from = r.RequestStatusID
		r.GuarantorID = &guarantorID
		r.RequestStatusID = models.StatusAccepted
		if err := tx.Requests.Save(ctx, r); err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return false, err
	}
	if req == nil {
		return false, nil
	}

	if from != models.StatusAccepted {
		observability.RequestTransitions.WithLabelValues(from.String(), models.StatusAccepted.String()).Inc()
		s.publish(ctx, notifications.EventRequestStatusChanged, req)
	}
	return true, nil
}

// AssignContract attaches the contract to the request and rejects every other
// pending request on the same property. Rejected clients are emailed after
// commit.
func (s *RequestService) AssignContract(ctx context.Context, requestID, contractID uint) (ok bool, err error) {
	ctx, span := observability.StartWorkflowSpan(ctx, "AssignContract", requestID)
	defer func() { observability.EndSpan(span, err) }()

	var (
		assigned bool
		rejected []models.Request
	)
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return ignoreNotFound(err)
		}
		if _, err := tx.Contracts.GetByID(ctx, contractID); err != nil {
			return ignoreNotFound(err)
		}

		r.ContractID = &contractID
		if err := tx.Requests.Save(ctx, r); err != nil {
			return err
		}

		pending, err := tx.Requests.FindPendingOnProperty(ctx, r.PropertyID, r.ID)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(pending))
		for _, p := range pending {
			ids = append(ids, p.ID)
		}
		if _, err := tx.Requests.RejectPending(ctx, ids, models.CascadeRejectionComment); err != nil {
			return err
		}
		assigned = true
		rejected = pending
		return nil
	})
	if err != nil {
		return false, err
	}
	if !assigned {
		return false, nil
	}

	observability.CascadeRejections.Add(float64(len(rejected)))
	for i := range rejected {
		r := &rejected[i]
		r.RequestStatusID = models.StatusRejected
		r.Comment = models.CascadeRejectionComment
		s.notifyClient(ctx, r, func(c *models.Client) notifications.Email {
			return notifications.CascadeRejectionEmail(c, r)
		})
		s.publish(ctx, notifications.EventRequestCascadeReject, r)
	}
	return true, nil
}

// ChangeAdviser reassigns the request and tells both advisers. It returns nil
// when the request or either adviser cannot be found.
func (s *RequestService) ChangeAdviser(ctx context.Context, requestID, adviserID uint) (req *models.Request, err error) {
	ctx, span := observability.StartWorkflowSpan(ctx, "ChangeAdviser", requestID)
	defer func() { observability.EndSpan(span, err) }()

	current, err := s.store.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	next, err := s.store.Advisers.GetByID(ctx, adviserID)
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	previous, err := s.store.Advisers.GetByID(ctx, current.AdviserID)
	if err != nil {
		return nil, ignoreNotFound(err)
	}

	req, err = s.store.Requests.Update(ctx, requestID, map[string]any{"adviser_id": adviserID})
	if err != nil {
		return nil, err
	}

	s.mailer.Email(ctx, notifications.AdviserChangedEmail(previous, req, previous, next))
	s.mailer.Email(ctx, notifications.AdviserChangedEmail(next, req, previous, next))
	s.publish(ctx, notifications.EventRequestAdviserChange, req)
	return req, nil
}

// EditRequest changes the free-form fields of a request.
func (s *RequestService) EditRequest(ctx context.Context, requestID uint, in EditRequestInput) (*models.Request, error) {
	fields := map[string]any{}
	if in.Comment != nil {
		fields["comment"] = *in.Comment
	}
	if in.RentalEndDate != nil {
		fields["rental_end_date"] = *in.RentalEndDate
	}
	return s.store.Requests.Update(ctx, requestID, fields)
}

// ListByProperty returns every request on the property.
func (s *RequestService) ListByProperty(ctx context.Context, propertyID uint) ([]models.Request, error) {
	if _, err := s.store.Properties.GetByID(ctx, propertyID); err != nil {
		return nil, err
	}
	return s.store.Requests.ListByProperty(ctx, propertyID)
}

// AcceptedByAdviserBetween returns the adviser's accepted requests dated in
// [start, end].
func (s *RequestService) AcceptedByAdviserBetween(ctx context.Context, adviserID uint, start, end time.Time) ([]models.Request, error) {
	if end.Before(start) {
		return nil, models.NewValidationError("endDate must not be before startDate")
	}
	return s.store.Requests.AcceptedByAdviserBetween(ctx, adviserID, start, end)
}

// ByAdviserAndStatus returns the adviser's requests in status.
func (s *RequestService) ByAdviserAndStatus(ctx context.Context, adviserID uint, status models.RequestStatus) ([]models.Request, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("unknown request status")
	}
	return s.store.Requests.ByAdviserAndStatus(ctx, adviserID, status)
}

// SendStaleDigest emails each adviser the requests still Sent after age.
// It returns how many advisers were notified.
func (s *RequestService) SendStaleDigest(ctx context.Context, age time.Duration) (int, error) {
	stale, err := s.store.Requests.SentBefore(ctx, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, err
	}

	byAdviser := make(map[uint][]models.Request)
	var order []uint
	for _, r := range stale {
		if _, seen := byAdviser[r.AdviserID]; !seen {
			order = append(order, r.AdviserID)
		}
		byAdviser[r.AdviserID] = append(byAdviser[r.AdviserID], r)
	}

	sent := 0
	for _, adviserID := range order {
		adviser, err := s.store.Advisers.GetByID(ctx, adviserID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "stale digest skipped adviser",
				slog.Uint64("adviser_id", uint64(adviserID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.mailer.Email(ctx, notifications.StaleRequestsEmail(adviser, byAdviser[adviserID]))
		sent++
	}
	return sent, nil
}

// lockRequest takes the property lock, then the request row. All writers use
// this order.
func lockRequest(ctx context.Context, tx *repository.Store, requestID uint) (*models.Request, error) {
	r, err := tx.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.LockProperty(ctx, r.PropertyID); err != nil {
		return nil, err
	}
	return tx.Requests.GetForUpdate(ctx, requestID)
}

func ignoreNotFound(err error) error {
	if models.IsCode(err, models.CodeNotFound) {
		return nil
	}
	return err
}

func (s *RequestService) notifyClient(ctx context.Context, r *models.Request, build func(*models.Client) notifications.Email) {
	client, err := s.store.Clients.GetByID(ctx, r.ClientID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "client notification skipped",
			slog.Uint64("request_id", uint64(r.ID)),
			slog.Uint64("client_id", uint64(r.ClientID)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.mailer.Email(ctx, build(client))
}

func (s *RequestService) publish(ctx context.Context, kind string, r *models.Request) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRequestEvent(ctx, notifications.NewRequestEvent(kind, r)); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish request event",
			slog.String("event", kind),
			slog.Uint64("request_id", uint64(r.ID)),
			slog.String("error", err.Error()),
		)
	}
}

package server

import (
	"time"

	"akinmueble/internal/models"
	"akinmueble/internal/service"
	"akinmueble/internal/validation"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

type createRequestBody struct {
	ClientID      uint               `json:"clientId"`
	PropertyID    uint               `json:"propertyId"`
	RequestTypeID models.RequestType `json:"requestTypeId"`
	Comment       string             `json:"comment"`
	RentalEndDate *time.Time         `json:"rentalEndDate"`
}

type cancelRequestBody struct {
	RequestID uint `json:"requestId"`
	ClientID  uint `json:"clientId"`
}

type changeStatusBody struct {
	RequestID uint                 `json:"requestId"`
	Status    models.RequestStatus `json:"status"`
	Comment   string               `json:"comment"`
}

type assignBody struct {
	RequestID uint `json:"requestId"`
	ID        uint `json:"id"`
}

type adviserChangeBody struct {
	ID        uint `json:"id"`
	AdviserID uint `json:"adviserId"`
}

// CreateRequest handles POST /request. The adviser always comes from the
// property; an adviserId in the body is ignored.
func (s *Server) CreateRequest(c *fiber.Ctx) error {
	var body createRequestBody
	if err := decodeBody(c, validation.CreateRequest, &body); err != nil {
		return nil
	}

	req, err := s.requests.CreateRequest(c.UserContext(), service.CreateRequestInput{
		ClientID:      body.ClientID,
		PropertyID:    body.PropertyID,
		RequestTypeID: body.RequestTypeID,
		Comment:       body.Comment,
		RentalEndDate: body.RentalEndDate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// EditRequest handles PATCH and PUT /request/:id. Only comment and
// rentalEndDate can change here.
func (s *Server) EditRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("request body must be a JSON object"))
	}
	var in service.EditRequestInput
	for key, value := range raw {
		switch key {
		case "comment":
			var comment string
			if err := json.Unmarshal(value, &comment); err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("comment must be a string"))
			}
			in.Comment = &comment
		case "rentalEndDate":
			var end time.Time
			if err := json.Unmarshal(value, &end); err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("rentalEndDate must be an RFC 3339 timestamp"))
			}
			in.RentalEndDate = &end
		case "id":
		default:
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("field "+key+" can only change through the request workflow"))
		}
	}

	req, err := s.requests.EditRequest(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	if c.Method() == fiber.MethodPut {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(req)
}

// CancelClientRequest handles POST /cancel-client-request and answers a bare
// boolean.
func (s *Server) CancelClientRequest(c *fiber.Ctx) error {
	var body cancelRequestBody
	if err := decodeBody(c, validation.CancelRequest, &body); err != nil {
		return nil
	}
	ok, err := s.requests.CancelByClient(c.UserContext(), body.RequestID, body.ClientID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ok)
}

// ChangeRequestStatus handles POST /change-status-of-request.
func (s *Server) ChangeRequestStatus(c *fiber.Ctx) error {
	var body changeStatusBody
	if err := decodeBody(c, validation.ChangeStatus, &body); err != nil {
		return nil
	}
	req, err := s.requests.ChangeStatus(c.UserContext(), body.RequestID, body.Status, body.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

// AssignGuarantor handles POST /assign-guarantor.
func (s *Server) AssignGuarantor(c *fiber.Ctx) error {
	var body assignBody
	if err := decodeBody(c, validation.AssignToRequest, &body); err != nil {
		return nil
	}
	ok, err := s.requests.AssignGuarantor(c.UserContext(), body.RequestID, body.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ok)
}

// AssignContract handles POST /assign-contract. Accepting the contract
// rejects the other open requests on the property.
func (s *Server) AssignContract(c *fiber.Ctx) error {
	var body assignBody
	if err := decodeBody(c, validation.AssignToRequest, &body); err != nil {
		return nil
	}
	ok, err := s.requests.AssignContract(c.UserContext(), body.RequestID, body.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ok)
}

// ChangeAdviser handles POST /adviser-change. A missing request or adviser
// answers null.
func (s *Server) ChangeAdviser(c *fiber.Ctx) error {
	var body adviserChangeBody
	if err := decodeBody(c, validation.AdviserChange, &body); err != nil {
		return nil
	}
	req, err := s.requests.ChangeAdviser(c.UserContext(), body.ID, body.AdviserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

// RequestsByAdviserDate handles GET /request-by-adviser-date: the adviser's
// accepted requests dated in [startDate, endDate].
func (s *Server) RequestsByAdviserDate(c *fiber.Ctx) error {
	adviserID, err := parseQueryID(c, "adviserId")
	if err != nil {
		return nil
	}
	start, err := parseQueryTime(c, "startDate")
	if err != nil {
		return nil
	}
	end, err := parseQueryTime(c, "endDate")
	if err != nil {
		return nil
	}
	requests, err := s.requests.AcceptedByAdviserBetween(c.UserContext(), adviserID, start, end)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// RequestsByAdviserStatus handles GET /requests-by-adviser-request-status.
func (s *Server) RequestsByAdviserStatus(c *fiber.Ctx) error {
	adviserID, err := parseQueryID(c, "adviserId")
	if err != nil {
		return nil
	}
	status, err := parseQueryID(c, "requestStatusId")
	if err != nil {
		return nil
	}
	requests, err := s.requests.ByAdviserAndStatus(c.UserContext(), adviserID, models.RequestStatus(status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// PropertyRequests handles GET /property/:id/requests.
func (s *Server) PropertyRequests(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	requests, err := s.requests.ListByProperty(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// DeleteRequest handles DELETE /request/:id.
func (s *Server) DeleteRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.requests.DeleteRequest(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

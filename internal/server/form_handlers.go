package server

import (
	"akinmueble/internal/models"
	"akinmueble/internal/validation"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

type applicationAnswerBody struct {
	Message string `json:"message"`
}

// SendAdviserApplication handles POST /send-message-advisor-request.
func (s *Server) SendAdviserApplication(c *fiber.Ctx) error {
	var form models.AdviserForm
	if err := decodeBody(c, validation.ContactForm, &form); err != nil {
		return nil
	}
	id, err := s.applications.SendAdviserApplication(c.UserContext(), form)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"sent": id != "", "messageId": id})
}

// SendContactForm handles POST /contact-form.
func (s *Server) SendContactForm(c *fiber.Ctx) error {
	var form models.ContactForm
	if err := decodeBody(c, validation.ContactForm, &form); err != nil {
		return nil
	}
	id, err := s.applications.SendContactForm(c.UserContext(), form)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"sent": id != "", "messageId": id})
}

// answerMessage reads the optional {message} body of an application answer.
func answerMessage(c *fiber.Ctx) (string, error) {
	if len(c.Body()) == 0 {
		return "", nil
	}
	var body applicationAnswerBody
	if err := decodeBody(c, validation.ApplicationAnswer, &body); err != nil {
		return "", err
	}
	return body.Message, nil
}

// AcceptAdviserApplication handles POST /adviser-form-accepted/:id. The
// caller's token is forwarded so the identity service can create the login.
func (s *Server) AcceptAdviserApplication(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	message, err := answerMessage(c)
	if err != nil {
		return nil
	}
	adviser, err := s.applications.AcceptAdviserApplication(c.UserContext(), id, bearer(c), message)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(adviser)
}

// RejectAdviserApplication handles POST /adviser-form-rejected/:id.
func (s *Server) RejectAdviserApplication(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	message, err := answerMessage(c)
	if err != nil {
		return nil
	}
	adviser, err := s.applications.RejectAdviserApplication(c.UserContext(), id, message)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(adviser)
}

// RegisterClient handles POST /client: the row is created and the identity
// service is asked for the client's login.
func (s *Server) RegisterClient(c *fiber.Ctx) error {
	var client models.Client
	if err := json.Unmarshal(c.Body(), &client); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("request body must be a client object"))
	}
	client.ID = 0
	if err := s.applications.RegisterClient(c.UserContext(), &client, bearer(c)); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

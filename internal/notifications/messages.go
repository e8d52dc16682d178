package notifications

import (
	"fmt"
	"html"
	"strings"

	"akinmueble/internal/models"
)

// Email subjects.
const (
	SubjectNewRequest        = "New real estate request"
	SubjectRequestResponse   = "Request response"
	SubjectAdviserChanged    = "Alert: Adviser Changed"
	SubjectApplicationAnswer = "Answer: Adviser Application"
	SubjectAdviserApplicant  = "New adviser application"
	SubjectContactForm       = "Website contact form"
	SubjectStaleRequests     = "Requests waiting for your review"
)

func paragraph(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("<p>")
		b.WriteString(l)
		b.WriteString("</p>")
	}
	return b.String()
}

// NewRequestEmail tells the adviser a client submitted a request.
func NewRequestEmail(adviser *models.Adviser, client *models.Client, property *models.Property, kind models.RequestType) Email {
	return Email{
		To:      adviser.Email,
		ToName:  adviser.FirstName,
		Subject: SubjectNewRequest,
		Body: paragraph(
			fmt.Sprintf("Hello %s, a client is interested in the property at %s.", html.EscapeString(adviser.FirstName), html.EscapeString(property.Address)),
			"Document: "+html.EscapeString(client.Document),
			"Name: "+html.EscapeString(client.FullName()),
			"Email: "+html.EscapeString(client.Email),
			"Phone: "+html.EscapeString(client.Phone),
			"Request type: "+kind.String(),
			fmt.Sprintf("Price: %.2f", property.PriceFor(kind)),
		),
	}
}

// StatusChangedEmail tells the client their request was answered.
func StatusChangedEmail(client *models.Client, request *models.Request, comment string) Email {
	return Email{
		To:      client.Email,
		ToName:  client.FirstName,
		Subject: SubjectRequestResponse,
		Body: paragraph(
			fmt.Sprintf("Hello %s, your request #%d is now: %s.", html.EscapeString(client.FirstName), request.ID, request.RequestStatusID),
			html.EscapeString(comment),
		),
	}
}

// CascadeRejectionEmail tells a client their request lost to an accepted one.
func CascadeRejectionEmail(client *models.Client, request *models.Request) Email {
	return Email{
		To:      client.Email,
		ToName:  client.FirstName,
		Subject: SubjectRequestResponse,
		Body: paragraph(
			fmt.Sprintf("Hello %s, your request #%d was rejected.", html.EscapeString(client.FirstName), request.ID),
			models.CascadeRejectionComment,
		),
	}
}

// AdviserChangedEmail tells an adviser that request moved from one adviser to another.
func AdviserChangedEmail(to *models.Adviser, request *models.Request, from, next *models.Adviser) Email {
	return Email{
		To:      to.Email,
		ToName:  to.FirstName,
		Subject: SubjectAdviserChanged,
		Body: paragraph(
			fmt.Sprintf("Hello %s, request #%d was reassigned.", html.EscapeString(to.FirstName), request.ID),
			"Previous adviser: "+html.EscapeString(from.FullName()),
			"New adviser: "+html.EscapeString(next.FullName()),
		),
	}
}

// ApplicationAnswerEmail answers an adviser application.
func ApplicationAnswerEmail(adviser *models.Adviser, accepted bool, message string) Email {
	verdict := "rejected"
	if accepted {
		verdict = "accepted. You will receive your access credentials shortly"
	}
	return Email{
		To:      adviser.Email,
		ToName:  adviser.FirstName,
		Subject: SubjectApplicationAnswer,
		Body: paragraph(
			fmt.Sprintf("Hello %s, your adviser application was %s.", html.EscapeString(adviser.FirstName), verdict),
			html.EscapeString(message),
		),
	}
}

// FormEmail forwards a public form to the administrator.
func FormEmail(vars *models.GeneralSystemVariables, subject string, form models.ContactForm) Email {
	return Email{
		To:      vars.AdministratorEmailContact,
		ToName:  vars.AdministratorNameContact,
		Subject: subject,
		Body: paragraph(
			"Message type: "+html.EscapeString(form.MessageType),
			"Name: "+html.EscapeString(form.FullName),
			"Document: "+html.EscapeString(form.Document),
			"Email: "+html.EscapeString(form.Email),
			"Phone: "+html.EscapeString(form.Phone),
			html.EscapeString(form.Message),
		),
	}
}

// StaleRequestsEmail reminds an adviser of requests still waiting in Sent.
func StaleRequestsEmail(adviser *models.Adviser, requests []models.Request) Email {
	lines := make([]string, 0, len(requests)+1)
	lines = append(lines, fmt.Sprintf("Hello %s, these requests are still waiting for review:", html.EscapeString(adviser.FirstName)))
	for _, r := range requests {
		lines = append(lines, fmt.Sprintf("#%d on property %d, sent %s", r.ID, r.PropertyID, r.Date.Format("2006-01-02")))
	}
	return Email{
		To:      adviser.Email,
		ToName:  adviser.FirstName,
		Subject: SubjectStaleRequests,
		Body:    paragraph(lines...),
	}
}

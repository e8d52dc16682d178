package models

import "time"

// RequestStatus is the lifecycle stage of a Request. Values match the rows
// seeded into request_statuses.
type RequestStatus uint

const (
	StatusSent                  RequestStatus = 1
	StatusInStudy               RequestStatus = 2
	StatusRejected              RequestStatus = 3
	StatusAcceptedWithGuarantor RequestStatus = 4
	StatusAccepted              RequestStatus = 5
	StatusCancelled             RequestStatus = 6
)

var statusNames = map[RequestStatus]string{
	StatusSent:                  "Sent",
	StatusInStudy:               "In study",
	StatusRejected:              "Rejected",
	StatusAcceptedWithGuarantor: "Accepted with guarantor",
	StatusAccepted:              "Accepted",
	StatusCancelled:             "Cancelled",
}

// transitions lists the adviser-driven edges. Cancelled is reached only by the
// client cancelling a Sent request, which deletes the row.
var transitions = map[RequestStatus][]RequestStatus{
	StatusSent:                  {StatusInStudy, StatusRejected},
	StatusInStudy:               {StatusAccepted, StatusAcceptedWithGuarantor, StatusRejected},
	StatusAcceptedWithGuarantor: {StatusAccepted},
}

// Valid reports whether s is one of the enumerated statuses.
func (s RequestStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s RequestStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsAccepted is true for both accepting statuses.
func (s RequestStatus) IsAccepted() bool {
	return s == StatusAccepted || s == StatusAcceptedWithGuarantor
}

// IsPending is true while a request can still lose to a competing accept.
func (s RequestStatus) IsPending() bool {
	return s == StatusSent || s == StatusInStudy
}

// NotifiesClient reports whether moving into s emails the client.
func (s RequestStatus) NotifiesClient() bool {
	return s == StatusRejected || s.IsAccepted()
}

// RequestType distinguishes sale from rental inquiries.
type RequestType uint

const (
	RequestTypeSale RequestType = 1
	RequestTypeRent RequestType = 2
)

func (t RequestType) String() string {
	switch t {
	case RequestTypeSale:
		return "Sale"
	case RequestTypeRent:
		return "Rent"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is sale or rent.
func (t RequestType) Valid() bool {
	return t == RequestTypeSale || t == RequestTypeRent
}

// CascadeRejectionComment is stored on requests rejected because a competing
// request on the same property was accepted.
const CascadeRejectionComment = "Your request was rejected because one was already accepted previously. We invite you to look at one that interests you."

// Request is a client's inquiry to buy or rent a property.
type Request struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	Date            time.Time     `gorm:"not null" json:"date"`
	Comment         string        `gorm:"type:text" json:"comment"`
	RentalEndDate   *time.Time    `json:"rentalEndDate,omitempty"`
	AdviserID       uint          `gorm:"not null;index" json:"adviserId"`
	ClientID        uint          `gorm:"not null;index" json:"clientId"`
	ContractID      *uint         `gorm:"index" json:"contractId,omitempty"`
	GuarantorID     *uint         `gorm:"index" json:"guarantorId,omitempty"`
	PropertyID      uint          `gorm:"not null;index:idx_requests_property_status" json:"propertyId"`
	Property        *Property     `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	RequestTypeID   RequestType   `gorm:"not null" json:"requestTypeId"`
	RequestStatusID RequestStatus `gorm:"not null;index:idx_requests_property_status" json:"requestStatusId"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// RequestStatusRecord is the reference row for a RequestStatus.
type RequestStatusRecord struct {
	ID   uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name string `gorm:"size:60;not null" json:"name"`
}

// TableName returns the database table name for RequestStatusRecord.
func (RequestStatusRecord) TableName() string {
	return "request_statuses"
}

// RequestTypeRecord is the reference row for a RequestType.
type RequestTypeRecord struct {
	ID   uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name string `gorm:"size:60;not null" json:"name"`
}

// TableName returns the database table name for RequestTypeRecord.
func (RequestTypeRecord) TableName() string {
	return "request_types"
}

// Contract is the reference stamped on an accepted request.
type Contract struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:64;uniqueIndex" json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

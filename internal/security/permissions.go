// Package security talks to the external identity service: permission checks
// for bearer tokens and credential issuing for approved advisers and clients.
package security

// Action is the closed set of operations a token can be authorised for.
type Action string

const (
	ActionList     Action = "list"
	ActionSave     Action = "save"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionDownload Action = "download"
	ActionCreate   Action = "create"
)

// Valid reports whether a is one of the declared actions.
func (a Action) Valid() bool {
	switch a {
	case ActionList, ActionSave, ActionEdit, ActionDelete, ActionDownload, ActionCreate:
		return true
	}
	return false
}

// Resource names a protected area of the API. Each maps to a menu registered
// in the identity service.
type Resource string

const (
	ResourceProperty        Resource = "property"
	ResourceRequest         Resource = "request"
	ResourceAdviser         Resource = "adviser"
	ResourceCity            Resource = "city"
	ResourceDepartment      Resource = "department"
	ResourceClient          Resource = "client"
	ResourceContract        Resource = "contract"
	ResourceFileManager     Resource = "file-manager"
	ResourceGuarantor       Resource = "guarantor"
	ResourcePhoto           Resource = "photo"
	ResourcePropertyType    Resource = "property-type"
	ResourceRequestType     Resource = "request-type"
	ResourceRequestStatus   Resource = "request-status"
	ResourceSystemVariables Resource = "general-system-variables"
)

var menuIDs = map[Resource]string{
	ResourceProperty:     "642ce496db8a5109ec877cdb",
	ResourceRequest:      "643dd7c10349685918540d80",
	ResourceAdviser:      "643dd7670349685918540d78",
	ResourceCity:         "643dd7710349685918540d79",
	ResourceDepartment:   "643dd7790349685918540d7a",
	ResourceClient:       "643dd7830349685918540d7b",
	ResourceContract:     "643dd78b0349685918540d7c",
	ResourceFileManager:  "643dd79c0349685918540d7d",
	ResourceGuarantor:    "643dd7a90349685918540d7e",
	ResourcePhoto:        "643dd7b40349685918540d7f",
	ResourcePropertyType: "643dd8270349685918540d82",
	ResourceRequestType:  "643dd8300349685918540d83",
	// Request statuses and system variables are administered under the
	// request and property menus respectively.
	ResourceRequestStatus:   "643dd7c10349685918540d80",
	ResourceSystemVariables: "642ce496db8a5109ec877cdb",
}

// MenuID returns the identity-service menu for r, or "" when r is unknown.
func (r Resource) MenuID() string {
	return menuIDs[r]
}

// Role is a role registered in the identity service.
type Role int

const (
	RoleAdviser Role = iota + 1
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleAdviser:
		return "adviser"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

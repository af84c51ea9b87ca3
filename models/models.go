// Package models defines the business records owned by the managed data API.
// Field names follow the data API schema (the original RealTechee tables):
// Contacts and Properties are primaries, referenced by agentContactId,
// homeownerContactId, addressId etc. from Requests, Projects and Quotes.
package models

import "time"

// Contact is a person: agent, homeowner, or service provider.
type Contact struct {
	ID                 string     `json:"id"`
	FirstName          string     `json:"firstName,omitempty"`
	LastName           string     `json:"lastName,omitempty"`
	FullName           string     `json:"fullName,omitempty"`
	Email              string     `json:"email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Mobile             string     `json:"mobile,omitempty"`
	Company            string     `json:"company,omitempty"`
	Brokerage          string     `json:"brokerage,omitempty"`
	EmailNotifications bool       `json:"emailNotifications,omitempty"`
	SMSNotifications   bool       `json:"smsNotifications,omitempty"`
	CreatedAt          *time.Time `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// Property is a renovation address.
type Property struct {
	ID                  string     `json:"id"`
	PropertyFullAddress string     `json:"propertyFullAddress,omitempty"`
	HouseAddress        string     `json:"houseAddress,omitempty"`
	City                string     `json:"city,omitempty"`
	State               string     `json:"state,omitempty"`
	Zip                 string     `json:"zip,omitempty"`
	PropertyType        string     `json:"propertyType,omitempty"`
	Bedrooms            float64    `json:"bedrooms,omitempty"`
	Bathrooms           float64    `json:"bathrooms,omitempty"`
	SizeSqft            float64    `json:"sizeSqft,omitempty"`
	YearBuilt           int        `json:"yearBuilt,omitempty"`
	Floors              int        `json:"floors,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}

// Request is an inbound lead from one of the public forms.
type Request struct {
	ID                     string     `json:"id"`
	Status                 string     `json:"status,omitempty"`
	Product                string     `json:"product,omitempty"`
	Message                string     `json:"message,omitempty"`
	RelationToProperty     string     `json:"relationToProperty,omitempty"`
	Budget                 string     `json:"budget,omitempty"`
	LeadSource             string     `json:"leadSource,omitempty"`
	AssignedTo             string     `json:"assignedTo,omitempty"`
	AssignedDate           *time.Time `json:"assignedDate,omitempty"`
	AgentContactID         string     `json:"agentContactId,omitempty"`
	HomeownerContactID     string     `json:"homeownerContactId,omitempty"`
	AddressID              string     `json:"addressId,omitempty"`
	RequestedVisitDateTime *time.Time `json:"requestedVisitDateTime,omitempty"`
	VirtualWalkthrough     string     `json:"virtualWalkthrough,omitempty"`
	CreatedAt              *time.Time `json:"createdAt,omitempty"`
	UpdatedAt              *time.Time `json:"updatedAt,omitempty"`
}

// Project is an active renovation engagement.
type Project struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title,omitempty"`
	Status             string     `json:"status,omitempty"`
	StatusOrder        int        `json:"statusOrder,omitempty"`
	Description        string     `json:"description,omitempty"`
	AgentContactID     string     `json:"agentContactId,omitempty"`
	HomeownerContactID string     `json:"homeownerContactId,omitempty"`
	AddressID          string     `json:"addressId,omitempty"`
	AssignedTo         string     `json:"assignedTo,omitempty"`
	Product            string     `json:"product,omitempty"`
	Budget             float64    `json:"budget,omitempty"`
	SalePrice          float64    `json:"salePrice,omitempty"`
	BoostPrice         float64    `json:"boostPrice,omitempty"`
	CreatedDate        *time.Time `json:"createdDate,omitempty"`
	UpdatedDate        *time.Time `json:"updatedDate,omitempty"`
}

// Quote is a renovation quote, optionally tied to a project.
type Quote struct {
	ID                 string     `json:"id"`
	QuoteNumber        int        `json:"quoteNumber,omitempty"`
	Title              string     `json:"title,omitempty"`
	Status             string     `json:"status,omitempty"`
	StatusOrder        int        `json:"statusOrder,omitempty"`
	ProjectID          string     `json:"projectId,omitempty"`
	RequestID          string     `json:"requestId,omitempty"`
	AgentContactID     string     `json:"agentContactId,omitempty"`
	HomeownerContactID string     `json:"homeownerContactId,omitempty"`
	AddressID          string     `json:"addressId,omitempty"`
	AssignedTo         string     `json:"assignedTo,omitempty"`
	Product            string     `json:"product,omitempty"`
	TotalPrice         float64    `json:"totalPrice,omitempty"`
	TotalCost          float64    `json:"totalCost,omitempty"`
	Budget             float64    `json:"budget,omitempty"`
	SentDate           *time.Time `json:"sentDate,omitempty"`
	OpenedDate         *time.Time `json:"openedDate,omitempty"`
	SignedDate         *time.Time `json:"signedDate,omitempty"`
	CreatedAt          *time.Time `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// QuoteItem is a line item on a quote.
type QuoteItem struct {
	ID          string  `json:"id"`
	QuoteID     string  `json:"quoteId,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	UnitPrice   float64 `json:"unitPrice,omitempty"`
	Total       float64 `json:"total,omitempty"`
	Type        string  `json:"type,omitempty"`
	Recommended bool    `json:"recommendItem,omitempty"`
	Order       int     `json:"order,omitempty"`
}

// ProjectComment is a comment on a project's activity feed.
type ProjectComment struct {
	ID                string     `json:"id"`
	ProjectID         string     `json:"projectId,omitempty"`
	PostedByContactID string     `json:"postedByContactId,omitempty"`
	Comment           string     `json:"comment,omitempty"`
	IsPrivate         bool       `json:"isPrivate,omitempty"`
	CreatedDate       *time.Time `json:"createdDate,omitempty"`
	UpdatedDate       *time.Time `json:"updatedDate,omitempty"`
}

// ProjectMilestone is a scheduled step inside a project.
type ProjectMilestone struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"projectId,omitempty"`
	Name            string     `json:"name,omitempty"`
	Description     string     `json:"description,omitempty"`
	Order           int        `json:"order,omitempty"`
	IsComplete      bool       `json:"isComplete,omitempty"`
	EstimatedStart  *time.Time `json:"estimatedStart,omitempty"`
	EstimatedFinish *time.Time `json:"estimatedFinish,omitempty"`
}

// StatusOption kinds, matching the backoffice lookup tables.
const (
	KindProjectStatus = "projectStatus"
	KindQuoteStatus   = "quoteStatus"
	KindRequestStatus = "requestStatus"
	KindAssignee      = "assignTo"
	KindProduct       = "product"
)

// StatusOption is a backoffice lookup row: statuses, assignees and products.
type StatusOption struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title,omitempty"`
	Order       int    `json:"order,omitempty"`
	Email       string `json:"email,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	NotifyEmail bool   `json:"sendEmailNotifications,omitempty"`
	NotifySMS   bool   `json:"sendSmsNotifications,omitempty"`
	Active      bool   `json:"active,omitempty"`
}

// Request statuses, in pipeline order.
const (
	RequestStatusNew      = "New"
	RequestStatusAssigned = "Assigned"
	RequestStatusMeeting  = "Meeting Scheduled"
	RequestStatusQuoted   = "Quoted"
	RequestStatusArchived = "Archived"
)

// Quote statuses used by the notification triggers.
const (
	QuoteStatusDraft  = "Draft"
	QuoteStatusSent   = "Sent"
	QuoteStatusOpened = "Opened"
	QuoteStatusSigned = "Signed"
)

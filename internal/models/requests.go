package models

// AdminRequest carries the shared admin secret for the POST admin endpoints,
// which accept it in the JSON body as an alternative to the x-admin-secret header.
type AdminRequest struct {
	Secret string `json:"secret"`
}

// SignupRequest is the payload of the public signup endpoint
type SignupRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Company   string `json:"company"`
	Plan      string `json:"plan"`
}

// ContactRequest is the payload of the contact form relay
type ContactRequest struct {
	FullName  string `json:"fullName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Company   string `json:"company"`
	Employees string `json:"employees"`
	Message   string `json:"message" binding:"required"`
}

// EventRegistrationRequest is the payload of the event registration relay
type EventRegistrationRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Company  string `json:"company"`
	Event    string `json:"event" binding:"required"`
}

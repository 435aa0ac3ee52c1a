package citydata

import (
	"regexp"
	"time"
)

// ServiceRequest is one record in the city's open-data service-request
// dataset.
type ServiceRequest struct {
	RequestNumber string     `json:"request_number"`
	RequestType   string     `json:"request_type"`
	Status        string     `json:"status"`
	Location      string     `json:"location"`
	Description   string     `json:"description,omitempty"`
	Agency        string     `json:"agency,omitempty"`
	OpenedAt      *time.Time `json:"opened_at,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

// Filter narrows a service-request search by location and/or type.
type Filter struct {
	Location    string `json:"location,omitempty"`
	RequestType string `json:"request_type,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// requestNumberPattern matches the city's request-number format, e.g.
// 25-00105756.
var requestNumberPattern = regexp.MustCompile(`^\d{2}-\d{8}$`)

// ValidRequestNumber reports whether s is a well-formed request number.
func ValidRequestNumber(s string) bool {
	return requestNumberPattern.MatchString(s)
}

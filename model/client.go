package model

import "time"

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "ACTIVE"
	ClientStatusInactive ClientStatus = "INACTIVE"
	ClientStatusBlocked  ClientStatus = "BLOCKED"
)

type ClientSegment string

const (
	ClientSegmentRetail       ClientSegment = "RETAIL"
	ClientSegmentPremium      ClientSegment = "PREMIUM"
	ClientSegmentProfessional ClientSegment = "PROFESSIONAL"
)

// Client is a bank customer holding zero or more accounts.
type Client struct {
	ID         int64         `json:"id"`
	Number     string        `json:"number"`
	Title      string        `json:"title"`
	LastName   string        `json:"last_name"`
	FirstName  string        `json:"first_name"`
	BirthDate  *time.Time    `json:"birth_date,omitempty"`
	Email      string        `json:"email,omitempty"`
	Phone      string        `json:"phone,omitempty"`
	Address    string        `json:"address,omitempty"`
	PostalCode string        `json:"postal_code,omitempty"`
	City       string        `json:"city,omitempty"`
	Country    string        `json:"country"`
	Status     ClientStatus  `json:"status"`
	Segment    ClientSegment `json:"segment"`
	BranchCode string        `json:"branch_code"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (c *Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

package models

import "time"

type Notice struct {
	ID        string
	Title     string
	Body      string
	AuthorID  string
	Pinned    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ApplicationType string

const (
	ApplicationLeave ApplicationType = "leave" // overnight stay away from the dorm
	ApplicationExit  ApplicationType = "exit"  // temporary daytime exit
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

type Application struct {
	ID        string
	UserID    string
	Type      ApplicationType
	Date      time.Time
	Reason    string
	Status    ApplicationStatus
	DecidedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LaundryReservation struct {
	ID         string
	UserID     string
	UserName   string
	RoomNumber string
	Date       time.Time
	Machine    int
	TimeIndex  int
	CreatedAt  time.Time
}

type PointKind string

const (
	PointMerit   PointKind = "merit"
	PointDemerit PointKind = "demerit"
)

type PointEntry struct {
	ID        string
	UserID    string
	Kind      PointKind
	Points    int
	Reason    string
	IssuedBy  string
	CreatedAt time.Time
}

type Alarm struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
}

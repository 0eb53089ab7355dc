package service

import "github.com/iliyamo/meeting-room-reservation/internal/utils"

// Confirmation is what the confirmation view shows after a booking or a
// cancellation.
type Confirmation struct {
	ReserverName   string `json:"reserverName"`
	Purpose        string `json:"purpose"`
	Room           string `json:"room"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	IsCancellation bool   `json:"isCancellation"`
}

// Params flattens the confirmation into navigation parameters.
// isCancellation is present only for cancellations.
func (c Confirmation) Params() map[string]string {
	p := map[string]string{
		"reserverName": c.ReserverName,
		"purpose":      c.Purpose,
		"room":         c.Room,
		"date":         c.Date,
		"time":         c.Time,
	}
	if c.IsCancellation {
		p["isCancellation"] = "true"
	}
	return p
}

// Claims converts the confirmation into token claims.
func (c Confirmation) Claims() utils.ConfirmationClaims {
	return utils.ConfirmationClaims{
		ReserverName:   c.ReserverName,
		Purpose:        c.Purpose,
		Room:           c.Room,
		Date:           c.Date,
		Time:           c.Time,
		IsCancellation: c.IsCancellation,
	}
}

// ConfirmationFromClaims is the inverse of Claims.
func ConfirmationFromClaims(cl *utils.ConfirmationClaims) Confirmation {
	return Confirmation{
		ReserverName:   cl.ReserverName,
		Purpose:        cl.Purpose,
		Room:           cl.Room,
		Date:           cl.Date,
		Time:           cl.Time,
		IsCancellation: cl.IsCancellation,
	}
}

package models

// LookupRequest asks for the owners of a plate range
type LookupRequest struct {
	Canton  string `json:"canton" binding:"required"`
	Start   int    `json:"start" binding:"required"`
	End     int    `json:"end,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// LoginStats counts login outcomes of a run
type LoginStats struct {
	Failed     int `json:"failed"`
	FirstGuess int `json:"first_guess"`
	LaterGuess int `json:"later_guess"`
}

// LookupResponse is returned once every requested plate has a result
type LookupResponse struct {
	RunID       string         `json:"run_id"`
	Canton      string         `json:"canton"`
	Results     []LookupResult `json:"results"`
	OwnersFound int            `json:"owners_found"`
	Logins      LoginStats     `json:"logins"`
	DurationSec float64        `json:"duration_sec"`
}

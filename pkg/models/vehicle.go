package models

import "fmt"

// Canton is a two-letter Swiss canton code served by the portal
type Canton string

const (
	CantonAargau       Canton = "AG"
	CantonLucerne      Canton = "LU"
	CantonSchaffhausen Canton = "SH"
	CantonZug          Canton = "ZG"
	CantonZurich       Canton = "ZH"
)

// SupportedCantons lists the cantons the portal accepts
var SupportedCantons = []Canton{CantonAargau, CantonLucerne, CantonSchaffhausen, CantonZug, CantonZurich}

// ParseCanton validates a canton code
func ParseCanton(code string) (Canton, error) {
	for _, c := range SupportedCantons {
		if string(c) == code {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported canton %q", code)
}

const (
	MinPlate = 1
	MaxPlate = 999999
)

// ValidPlate reports whether plate is inside the portal's number range
func ValidPlate(plate int) bool {
	return plate >= MinPlate && plate <= MaxPlate
}

// Owner is one registration holder listed on a result page
type Owner struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Street string `json:"street"`
	City   string `json:"city"`
}

// String renders the owner one field per line
func (o Owner) String() string {
	return o.Type + "\n" + o.Name + "\n" + o.Street + "\n" + o.City + "\n"
}

// LookupResult pairs a plate with its owners. An empty owner list is a valid answer.
type LookupResult struct {
	Plate  int     `json:"plate"`
	Owners []Owner `json:"owners"`
}

// LoginOutcome classifies a login attempt for statistics
type LoginOutcome int

const (
	LoginFailed LoginOutcome = iota
	LoginSucceededFirstGuess
	LoginSucceededLaterGuess
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginFailed:
		return "failed"
	case LoginSucceededFirstGuess:
		return "first_guess"
	case LoginSucceededLaterGuess:
		return "later_guess"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

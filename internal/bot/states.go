package bot

import (
	"fmt"
	"strings"
)

// State is a step of the conversation. The set is closed: ParseState
// rejects any name not listed here.
type State string

const (
	StateIdle             State = "idle"
	StateChoosingLanguage State = "choosing_language"
	StateAwaitingPhone    State = "awaiting_phone"
	StateAwaitingOTP      State = "awaiting_otp"
	StateAwaitingPassword State = "awaiting_password"

	StateResumeTitle      State = "resume:title"
	StateResumeCategory   State = "resume:category"
	StateResumeRegion     State = "resume:region"
	StateResumeDistrict   State = "resume:district"
	StateResumeSalary     State = "resume:salary"
	StateResumeExperience State = "resume:experience"
	StateResumeEmployment State = "resume:employment"
	StateResumeSkills     State = "resume:skills"
	StateResumeConfirm    State = "resume:confirm"

	StateSearchCategory   State = "search:category"
	StateSearchRegion     State = "search:region"
	StateSearchDistrict   State = "search:district"
	StateSearchSalary     State = "search:salary"
	StateSearchExperience State = "search:experience"
	StateSearchEmployment State = "search:employment"

	StateBrowsingResults State = "browsing_results"
)

var allStates = []State{
	StateIdle,
	StateChoosingLanguage,
	StateAwaitingPhone,
	StateAwaitingOTP,
	StateAwaitingPassword,
	StateResumeTitle,
	StateResumeCategory,
	StateResumeRegion,
	StateResumeDistrict,
	StateResumeSalary,
	StateResumeExperience,
	StateResumeEmployment,
	StateResumeSkills,
	StateResumeConfirm,
	StateSearchCategory,
	StateSearchRegion,
	StateSearchDistrict,
	StateSearchSalary,
	StateSearchExperience,
	StateSearchEmployment,
	StateBrowsingResults,
}

var knownStates = func() map[State]bool {
	m := make(map[State]bool, len(allStates))
	for _, s := range allStates {
		m[s] = true
	}
	return m
}()

func ParseState(name string) (State, error) {
	s := State(name)
	if !knownStates[s] {
		return "", fmt.Errorf("unknown state %q", name)
	}
	return s, nil
}

// stateKind groups the states that share handlers.
type stateKind string

const (
	kindIdle     stateKind = "idle"
	kindLanguage stateKind = "language"
	kindPhone    stateKind = "phone"
	kindOTP      stateKind = "otp"
	kindPassword stateKind = "password"
	kindResume   stateKind = "resume"
	kindSearch   stateKind = "search"
	kindBrowsing stateKind = "browsing"
)

func (s State) Kind() stateKind {
	switch {
	case strings.HasPrefix(string(s), "resume:"):
		return kindResume
	case strings.HasPrefix(string(s), "search:"):
		return kindSearch
	}
	switch s {
	case StateChoosingLanguage:
		return kindLanguage
	case StateAwaitingPhone:
		return kindPhone
	case StateAwaitingOTP:
		return kindOTP
	case StateAwaitingPassword:
		return kindPassword
	case StateBrowsingResults:
		return kindBrowsing
	default:
		return kindIdle
	}
}

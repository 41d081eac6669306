// Package candidate defines candidate records, their enrichment states and
// the policy that moves a candidate from one enrichment stage to the next.
package candidate

import (
	"github.com/rotisserie/eris"
)

// State is the enrichment state stored on a candidate record.
type State string

// Enrichment states. XML and XMLFailed belong to ingestion adapters that run
// before text extraction.
const (
	XML                   State = "xml"
	XMLFailed             State = "xml_failed"
	ExtractText           State = "extract_text"
	ExtractTextFailed     State = "extract_text_failed"
	GoogleScrape          State = "google_scrape"
	GoogleScrapeFailed    State = "google_scrape_failed"
	LinkedInScrape        State = "linkedin_scrape"
	LinkedInScrapeFailed  State = "linkedin_scrape_failed"
	GitHubScrape          State = "github_scrape"
	GitHubScrapeFailed    State = "github_scrape_failed"
	ProfileCreation       State = "profile_creation"
	ProfileCreationFailed State = "profile_creation_failed"
	ProfileCreated        State = "profile_created"
	ProfileCreatedFailed  State = "profile_created_failed"
)

// ErrUnknownState is returned for values that are not enrichment states, or
// for states that have no stage transition.
var ErrUnknownState = eris.New("candidate: unknown enrichment state")

var allStates = []State{
	XML, XMLFailed,
	ExtractText, ExtractTextFailed,
	GoogleScrape, GoogleScrapeFailed,
	LinkedInScrape, LinkedInScrapeFailed,
	GitHubScrape, GitHubScrapeFailed,
	ProfileCreation, ProfileCreationFailed,
	ProfileCreated, ProfileCreatedFailed,
}

// stageOrder is the forward ordering of stage target states.
var stageOrder = map[State]int{
	XML:             0,
	ExtractText:     1,
	GoogleScrape:    2,
	LinkedInScrape:  3,
	GitHubScrape:    4,
	ProfileCreation: 5,
	ProfileCreated:  6,
}

// failureOf maps each failure state to the stage target state it failed in.
var failureOf = map[State]State{
	XMLFailed:             XML,
	ExtractTextFailed:     ExtractText,
	GoogleScrapeFailed:    GoogleScrape,
	LinkedInScrapeFailed:  LinkedInScrape,
	GitHubScrapeFailed:    GitHubScrape,
	ProfileCreationFailed: ProfileCreation,
	ProfileCreatedFailed:  ProfileCreated,
}

// States returns every enrichment state.
func States() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState converts a stored value into a State.
func ParseState(s string) (State, error) {
	for _, st := range allStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownState, "parse %q", s)
}

func (s State) String() string { return string(s) }

// IsFailed reports whether s is a failure state.
func (s State) IsFailed() bool {
	_, ok := failureOf[s]
	return ok
}

// FailedStage returns the stage target state a failure state belongs to.
func (s State) FailedStage() (State, bool) {
	st, ok := failureOf[s]
	return st, ok
}

// IsTerminal reports whether no automatic transition leaves s.
func (s State) IsTerminal() bool {
	if s == ProfileCreated {
		return true
	}
	return s.IsFailed()
}

// Rank returns the position of s in the stage ordering. Failure states rank
// with the stage they failed in. Unknown states return -1.
func (s State) Rank() int {
	if r, ok := stageOrder[s]; ok {
		return r
	}
	if st, ok := failureOf[s]; ok {
		return stageOrder[st]
	}
	return -1
}

package candidate

import (
	"github.com/rotisserie/eris"
)

// Outcome is the result of one stage attempt for one candidate.
type Outcome string

// Stage outcomes.
const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// Policy says what a stage failure means for the candidate.
type Policy string

// Failure policies.
const (
	// HardFail records a terminal failure state.
	HardFail Policy = "hard_fail"
	// Degrade skips forward as if the optional stage had produced nothing.
	Degrade Policy = "degrade"
)

// Transition is one row of the stage table.
type Transition struct {
	Stage     State
	OnSuccess State
	OnFailure State
	Policy    Policy
}

var transitions = map[State]Transition{
	ExtractText:     {Stage: ExtractText, OnSuccess: GoogleScrape, OnFailure: ExtractTextFailed, Policy: HardFail},
	GoogleScrape:    {Stage: GoogleScrape, OnSuccess: LinkedInScrape, OnFailure: ProfileCreation, Policy: Degrade},
	LinkedInScrape:  {Stage: LinkedInScrape, OnSuccess: GitHubScrape, OnFailure: GitHubScrape, Policy: Degrade},
	GitHubScrape:    {Stage: GitHubScrape, OnSuccess: ProfileCreation, OnFailure: ProfileCreation, Policy: Degrade},
	ProfileCreation: {Stage: ProfileCreation, OnSuccess: ProfileCreated, OnFailure: ProfileCreationFailed, Policy: HardFail},
}

// StageStates returns the stage target states in pipeline order.
func StageStates() []State {
	return []State{ExtractText, GoogleScrape, LinkedInScrape, GitHubScrape, ProfileCreation}
}

// TransitionFor returns the table row for a stage target state.
func TransitionFor(stage State) (Transition, error) {
	t, ok := transitions[stage]
	if !ok {
		return Transition{}, eris.Wrapf(ErrUnknownState, "no stage for %q", stage)
	}
	return t, nil
}

// NextState returns the state a candidate moves to after an attempt at stage.
// It has no side effects.
func NextState(stage State, outcome Outcome) (State, error) {
	t, err := TransitionFor(stage)
	if err != nil {
		return "", err
	}
	switch outcome {
	case Success:
		return t.OnSuccess, nil
	case Failure:
		return t.OnFailure, nil
	default:
		return "", eris.Errorf("candidate: unknown outcome %q", outcome)
	}
}

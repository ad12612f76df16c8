package model

import (
	"fmt"
	"strings"
)

// ChangeRequest identifies the change a test is synthesized for.
type ChangeRequest struct {
	Owner            string
	Repo             string
	Number           int
	BaseRevision     string
	HeadRevision     string
	ProblemStatement string
}

// ID is stable per request and namespaces scratch state, containers and images.
func (r ChangeRequest) ID() string {
	return fmt.Sprintf("%s__%s-%d", r.Owner, r.Repo, r.Number)
}

// ImageTag is the reusable environment image for the request.
func (r ChangeRequest) ImageTag() string {
	return strings.ToLower("image_" + r.ID())
}

// Backend is a closed set of generation backends.
type Backend string

// Supported backends.
const (
	BackendMock   Backend = "mock"
	BackendGPT4o  Backend = "gpt-4o"
	BackendO3Mini Backend = "o3-mini"
	BackendLlama  Backend = "llama-3.3-70b-versatile"
	BackendQwen   Backend = "qwen/qwen3-32b"
	BackendGemini Backend = "gemini-2.0-flash"
)

// Provider groups backends by the API that serves them.
type Provider string

// Providers.
const (
	ProviderMock   Provider = "mock"
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
	ProviderGemini Provider = "gemini"
)

var backendProviders = map[Backend]Provider{
	BackendMock:   ProviderMock,
	BackendGPT4o:  ProviderOpenAI,
	BackendO3Mini: ProviderOpenAI,
	BackendLlama:  ProviderGroq,
	BackendQwen:   ProviderGroq,
	BackendGemini: ProviderGemini,
}

// Backends lists every supported backend in a stable order.
func Backends() []Backend {
	return []Backend{BackendMock, BackendGPT4o, BackendO3Mini, BackendLlama, BackendQwen, BackendGemini}
}

// ParseBackend accepts the model name or a short alias.
func ParseBackend(value string) (Backend, error) {
	v := strings.ToLower(strings.TrimSpace(value))

	switch v {
	case "llama":
		return BackendLlama, nil
	case "qwen":
		return BackendQwen, nil
	case "gemini":
		return BackendGemini, nil
	case "gpt4o":
		return BackendGPT4o, nil
	}

	b := Backend(v)
	if _, ok := backendProviders[b]; !ok {
		return "", fmt.Errorf("unknown backend %q", value)
	}

	return b, nil
}

// Provider returns the API serving the backend.
func (b Backend) Provider() Provider {
	return backendProviders[b]
}

// SupportsTemperature reports whether the model accepts a sampling temperature.
func (b Backend) SupportsTemperature() bool {
	return b != BackendO3Mini
}

// RunStatus is the terminal state of a synthesis run.
type RunStatus int

const (
	// RunExhausted means the attempt budget ran out.
	RunExhausted RunStatus = iota
	// RunSucceeded means a fail-to-pass test was found.
	RunSucceeded
	// RunDeclined means the generator decided no test is needed.
	RunDeclined
	// RunAborted means a structural or tooling error stopped the run.
	RunAborted
)

func (s RunStatus) String() string {
	switch s {
	case RunSucceeded:
		return "succeeded"
	case RunDeclined:
		return "declined"
	case RunAborted:
		return "aborted"
	default:
		return "exhausted"
	}
}

// RunResult is what a single run reports.
type RunResult struct {
	Request  ChangeRequest
	Backend  Backend
	Status   RunStatus
	Attempts []AttemptRecord
	Comment  string
	Err      error
}

// Last returns the final attempt, the one reported on exhaustion.
func (r RunResult) Last() (AttemptRecord, bool) {
	if len(r.Attempts) == 0 {
		return AttemptRecord{}, false
	}

	return r.Attempts[len(r.Attempts)-1], true
}

// Spent counts the attempts charged to the budget. Patch failures are kept
// for audit but not charged.
func (r RunResult) Spent() int {
	n := 0

	for _, a := range r.Attempts {
		if a.Outcome != OutcomePatchFailed {
			n++
		}
	}

	return n
}

// Tally accumulates outcomes across runs. It is passed and returned by value.
type Tally struct {
	Runs      int
	Succeeded int
	Exhausted int
	Declined  int
	Aborted   int
	Attempts  int
	Outcomes  map[Outcome]int
}

// Record returns the tally with result folded in.
func (t Tally) Record(result RunResult) Tally {
	out := t.clone()
	out.Runs++
	out.Attempts += result.Spent()

	switch result.Status {
	case RunSucceeded:
		out.Succeeded++
	case RunDeclined:
		out.Declined++
	case RunAborted:
		out.Aborted++
	default:
		out.Exhausted++
	}

	for _, a := range result.Attempts {
		out.Outcomes[a.Outcome]++
	}

	return out
}

// Merge returns the sum of two tallies.
func (t Tally) Merge(other Tally) Tally {
	out := t.clone()
	out.Runs += other.Runs
	out.Succeeded += other.Succeeded
	out.Exhausted += other.Exhausted
	out.Declined += other.Declined
	out.Aborted += other.Aborted
	out.Attempts += other.Attempts

	for k, v := range other.Outcomes {
		out.Outcomes[k] += v
	}

	return out
}

func (t Tally) clone() Tally {
	out := t
	out.Outcomes = make(map[Outcome]int, len(t.Outcomes))

	for k, v := range t.Outcomes {
		out.Outcomes[k] = v
	}

	return out
}

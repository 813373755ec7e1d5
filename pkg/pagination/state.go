package pagination

// State is the position of a run in the pagination state machine.
type State int

const (
	StateStart State = iota
	StateFetchPage
	StateHasMore
	StateExhausted
	StateLimitReached
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetchPage:
		return "fetch_page"
	case StateHasMore:
		return "has_more"
	case StateExhausted:
		return "exhausted"
	case StateLimitReached:
		return "limit_reached"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// StopReason explains why a run ended.
type StopReason string

const (
	StopExhausted    StopReason = "exhausted"
	StopLimitReached StopReason = "limit_reached"
	StopMaxPages     StopReason = "max_pages"
	StopShortPage    StopReason = "short_page"
	StopConsumer     StopReason = "consumer"
)

// Result summarises a finished run.
type Result struct {
	Pages   int
	Emitted int
	Reason  StopReason
}

package orders

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusModified  Status = "MODIFIED"
	StatusCancelled Status = "CANCELLED"
)

// CANCELLED is terminal: re-ordering creates a new order row, never a
// resurrection of the old one.
var validNext = map[Status]map[Status]bool{
	StatusConfirmed: {StatusModified: true, StatusCancelled: true},
	StatusModified:  {StatusModified: true, StatusCancelled: true},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Active reports whether an order in this status still occupies its
// (user, menu) slot.
func (s Status) Active() bool { return s != StatusCancelled }

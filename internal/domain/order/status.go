package order

// Status is the lifecycle state of an order.
//
//	Requested ──> Approved
//	    │             │ (admin)
//	    └──> Cancelled <┘
//
// Cancelled is terminal.
type Status int

const (
	// Requested is the initial state of every order.
	Requested Status = 1
	// Approved orders were accepted by an administrator.
	Approved Status = 2
	// Cancelled orders accept no further changes.
	Cancelled Status = 3
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == Requested || s == Approved || s == Cancelled
}

func (s Status) String() string {
	switch s {
	case Requested:
		return "requested"
	case Approved:
		return "approved"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus maps a status name back to its value.
func ParseStatus(name string) (Status, bool) {
	for _, s := range []Status{Requested, Approved, Cancelled} {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == Cancelled
}

// ValidateEdit checks that items and unit of an order in s may change.
func (s Status) ValidateEdit() error {
	if s.Terminal() {
		return errTerminal
	}
	if s != Requested && s != Approved {
		return &PermissionError{Reason: "order status " + s.String() + " cannot be edited"}
	}
	return nil
}

// Approve returns the state after an approval.
func (s Status) Approve() (Status, error) {
	switch s {
	case Requested:
		return Approved, nil
	case Cancelled:
		return 0, errTerminal
	default:
		return 0, &PermissionError{Reason: "only requested orders can be approved"}
	}
}

// Cancel returns the state after a cancellation. Leaving Approved is
// reserved for administrators.
func (s Status) Cancel(admin bool) (Status, error) {
	switch s {
	case Requested:
		return Cancelled, nil
	case Approved:
		if !admin {
			return 0, &PermissionError{Reason: "approved orders can only be cancelled by an administrator"}
		}
		return Cancelled, nil
	case Cancelled:
		return 0, errTerminal
	default:
		return 0, &PermissionError{Reason: "order status " + s.String() + " cannot be cancelled"}
	}
}

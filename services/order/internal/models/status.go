package models

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// fulfilment position; cancelled sits outside the sequence.
var rank = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := rank[st]; ok || st == StatusCancelled {
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// pending goes to confirmed or cancelled; past that only forward moves along
// confirmed, processing, shipped, delivered are legal, skips included.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	if to == StatusCancelled {
		return from == StatusPending
	}
	fromRank, ok := rank[from]
	if !ok {
		return false
	}
	toRank, ok := rank[to]
	if !ok {
		return false
	}
	if from == StatusPending {
		return to == StatusConfirmed
	}
	return toRank > fromRank
}

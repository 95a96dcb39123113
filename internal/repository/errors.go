package repository

import "errors"

var (
	// ErrSlotTaken is returned when another active booking already holds the date and start time.
	ErrSlotTaken = errors.New("slot already booked")
	ErrNotFound  = errors.New("record not found")
)

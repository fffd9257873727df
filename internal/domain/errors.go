package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidTaskName     = errors.New("invalid task name")
	ErrInvalidTime         = errors.New("invalid time")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidDayStartHour = errors.New("invalid day start hour")
	ErrCrossesDayBoundary  = errors.New("activity crosses day boundary")
	ErrActivityNotFound    = errors.New("activity not found")
	ErrDuplicateActivity   = errors.New("activity id already used")
)

package repository

import "errors"

// ErrAlreadyBooked на это время у репетитора уже есть забронированное занятие
var ErrAlreadyBooked = errors.New("session already booked")

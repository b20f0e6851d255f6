package repository

import "errors"

// ErrStaleCard is returned when a conditional card update matched no row
// because the card changed underneath the caller.
var ErrStaleCard = errors.New("card was modified concurrently")

// ErrLiveCardExists is returned when a student already holds a card that
// is not revoked.
var ErrLiveCardExists = errors.New("student already has a live card")

package integration_test

import "time"

const (
	TestPartyId      = 100
	TestOtherPartyId = 200
	TestOperatorId   = 900

	// Showing 1 is bookable, showing 2 has ended and showing 3 has no seat records yet.
	TestShowingId         = 1
	TestEndedShowingId    = 2
	TestUnopenedShowingId = 3

	TestMaxHoldsPerParty = 3
	TestHoldTTL          = 10 * time.Minute
)

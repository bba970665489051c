package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceTable holds the server-side price of each seat type.
type PriceTable map[SeatType]decimal.Decimal

func DefaultPriceTable() PriceTable {
	return PriceTable{
		SeatTypeNormal:     decimal.NewFromInt(10000),
		SeatTypePremium:    decimal.NewFromInt(15000),
		SeatTypeVIP:        decimal.NewFromInt(20000),
		SeatTypeCouple:     decimal.NewFromInt(25000),
		SeatTypeWheelchair: decimal.NewFromInt(10000),
	}
}

type Quote struct {
	PerSeat map[int64]decimal.Decimal
	Total   decimal.Decimal
}

func (p PriceTable) Quote(seats []ShowingSeat) (*Quote, error) {
	quote := &Quote{
		PerSeat: make(map[int64]decimal.Decimal, len(seats)),
		Total:   decimal.Zero,
	}

	for _, seat := range seats {
		price, ok := p[seat.Type]
		if !ok {
			return nil, fmt.Errorf("seat %d type %q: %w", seat.SeatID, seat.Type, ErrUnknownSeatType)
		}

		quote.PerSeat[seat.SeatID] = price
		quote.Total = quote.Total.Add(price)
	}

	return quote, nil
}

package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seat-reservation-system/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_PayRequest(t *testing.T) {
	validItem := api.SeatHoldItem{SeatId: 1, HoldToken: "7a1b3f0e-4c55-4f3c-9b6e-2d1f0c8e9a11"}

	tests := []struct {
		name      string
		input     api.PayRequest
		wantField string
		wantIssue string
	}{
		{
			name:  "should accept a valid request",
			input: api.PayRequest{ShowingId: 1, SeatHoldItems: []api.SeatHoldItem{validItem}, PayMethod: "CARD"},
		},
		{
			name:      "should reject an unknown pay method",
			input:     api.PayRequest{ShowingId: 1, SeatHoldItems: []api.SeatHoldItem{validItem}, PayMethod: "CASH"},
			wantField: "payMethod",
			wantIssue: "must be one of CARD, KAKAO_PAY, NAVER_PAY, TOSS, BANK_TRANSFER",
		},
		{
			name:      "should reject an empty seat list",
			input:     api.PayRequest{ShowingId: 1, SeatHoldItems: []api.SeatHoldItem{}, PayMethod: "CARD"},
			wantField: "seatHoldItems",
			wantIssue: "must contain at least 1 items",
		},
		{
			name: "should reject a malformed hold token",
			input: api.PayRequest{
				ShowingId:     1,
				SeatHoldItems: []api.SeatHoldItem{{SeatId: 1, HoldToken: "not-a-token"}},
				PayMethod:     "TOSS",
			},
			wantField: "holdToken",
			wantIssue: "must be a valid hold token",
		},
	}

	v := NewValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var validationErrs validator.ValidationErrors
			require.ErrorAs(t, err, &validationErrs)
			require.Len(t, validationErrs, 1)
			assert.Equal(t, tt.wantField, validationErrs[0].Field())
			assert.Equal(t, tt.wantIssue, ValidationMessage(validationErrs[0]))
		})
	}
}

func TestValidator_SeatStatusRequest(t *testing.T) {
	v := NewValidator()

	for _, status := range []string{"AVAILABLE", "BLOCKED", "DISABLED"} {
		assert.NoError(t, v.Struct(api.SeatStatusRequest{Status: status}), status)
	}

	for _, status := range []string{"HOLD", "RESERVED", "blocked"} {
		assert.Error(t, v.Struct(api.SeatStatusRequest{Status: status}), status)
	}
}

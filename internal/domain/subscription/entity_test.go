// internal/domain/subscription/entity_test.go
package subscription

import (
	"testing"
	"time"

	xerrors "autopay-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyValidate(t *testing.T) {
	assert.NoError(t, Frequency{Kind: FrequencyDaily}.Validate())
	assert.NoError(t, Frequency{Kind: FrequencyWeekly}.Validate())
	assert.NoError(t, Frequency{Kind: FrequencyMonthly, DayOfMonth: 28}.Validate())
	assert.NoError(t, Frequency{Kind: FrequencyYearly, Month: 2, Day: 28}.Validate())
	assert.NoError(t, Frequency{Kind: FrequencyCustom, Interval: time.Hour}.Validate())

	assert.ErrorIs(t, Frequency{Kind: FrequencyMonthly, DayOfMonth: 0}.Validate(), xerrors.ErrInvalidArgument)
	assert.ErrorIs(t, Frequency{Kind: FrequencyMonthly, DayOfMonth: 29}.Validate(), xerrors.ErrInvalidArgument)
	assert.ErrorIs(t, Frequency{Kind: FrequencyYearly, Month: 13, Day: 1}.Validate(), xerrors.ErrInvalidArgument)
	assert.ErrorIs(t, Frequency{Kind: FrequencyYearly, Month: 2, Day: 30}.Validate(), xerrors.ErrInvalidArgument)
	assert.ErrorIs(t, Frequency{Kind: FrequencyCustom}.Validate(), xerrors.ErrInvalidArgument)
	assert.ErrorIs(t, Frequency{Kind: "hourly"}.Validate(), xerrors.ErrInvalidArgument)
}

func TestFrequencyNextDue(t *testing.T) {
	from := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, from.Add(24*time.Hour), Frequency{Kind: FrequencyDaily}.NextDue(from))
	assert.Equal(t, from.Add(7*24*time.Hour), Frequency{Kind: FrequencyWeekly}.NextDue(from))

	// Monthly: billing day later in the current month.
	next := Frequency{Kind: FrequencyMonthly, DayOfMonth: 15}.NextDue(from)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), next)

	// Monthly: billing day already passed rolls to the next month.
	next = Frequency{Kind: FrequencyMonthly, DayOfMonth: 5}.NextDue(from)
	assert.Equal(t, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), next)

	// Yearly: date already passed this year rolls to next year.
	next = Frequency{Kind: FrequencyYearly, Month: 1, Day: 20}.NextDue(from)
	assert.Equal(t, time.Date(2027, 1, 20, 0, 0, 0, 0, time.UTC), next)

	assert.Equal(t, from.Add(90*time.Minute), Frequency{Kind: FrequencyCustom, Interval: 90 * time.Minute}.NextDue(from))
}

func TestTermsValidate(t *testing.T) {
	valid := Terms{
		Amount:    999,
		Currency:  "USD",
		Frequency: Frequency{Kind: FrequencyMonthly, DayOfMonth: 15},
		Method:    "card",
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Terms){
		"zero amount":       func(tm *Terms) { tm.Amount = 0 },
		"negative amount":   func(tm *Terms) { tm.Amount = -1 },
		"empty currency":    func(tm *Terms) { tm.Currency = "" },
		"empty method":      func(tm *Terms) { tm.Method = "" },
		"negative cap":      func(tm *Terms) { tm.MaxAmountPerPeriod = -1 },
		"invalid frequency": func(tm *Terms) { tm.Frequency = Frequency{Kind: FrequencyMonthly} },
	}
	for name, mutate := range cases {
		terms := valid
		mutate(&terms)
		assert.ErrorIs(t, terms.Validate(), xerrors.ErrInvalidArgument, name)
	}
}

func TestSubscriptionCloneIsDeep(t *testing.T) {
	ends := time.Now().Add(time.Hour)
	sub := &Subscription{
		ID:       "sub-1",
		EndsAt:   &ends,
		Metadata: map[string]interface{}{MetaPaused: true},
		ProposerSig: &Signature{
			SignerKey: "key",
			Nonce:     []byte{1, 2, 3},
		},
	}

	cp := sub.Clone()
	cp.Metadata[MetaPaused] = false
	*cp.EndsAt = ends.Add(time.Hour)
	cp.ProposerSig.SignerKey = "other"

	assert.True(t, sub.IsPaused())
	assert.Equal(t, ends, *sub.EndsAt)
	assert.Equal(t, "key", sub.ProposerSig.SignerKey)
}

func TestCounterparty(t *testing.T) {
	ss := &SignedSubscription{
		Subscription: Subscription{SubscriberKey: "alice", ProviderKey: "bob"},
	}
	assert.Equal(t, "bob", ss.Counterparty("alice"))
	assert.Equal(t, "alice", ss.Counterparty("bob"))
}

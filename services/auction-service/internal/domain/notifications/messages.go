package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

// DefaultMoneyExponent treats amounts as whole currency units.
const DefaultMoneyExponent int32 = 0

// FormatAmount renders an amount stored in the smallest currency unit.
func FormatAmount(amount int64, exponent int32) string {
	return decimal.New(amount, -exponent).StringFixed(exponent)
}

func greeting(to Contact) string {
	if name := strings.TrimSpace(to.Name); name != "" {
		return "Hello " + name + ","
	}
	return "Hello,"
}

// OutbidMessage tells the previous highest bidder they lost the lead.
func OutbidMessage(to Contact, e *bids.OutbidEvent, exponent int32) Message {
	prev := FormatAmount(e.PreviousAmount, exponent)
	next := FormatAmount(e.NewAmount, exponent)
	return Message{
		Subject: fmt.Sprintf("You have been outbid on %s", e.LotName),
		Body: fmt.Sprintf("%s\n\nYour bid of %s on %s is no longer the highest. The current highest bid is %s.\n"+
			"Place a new bid of at least %s to take the lead again.\n",
			greeting(to), prev, e.LotName, next, FormatAmount(e.NewAmount+bids.MinIncrement, exponent)),
		SMS: fmt.Sprintf("Outbid on %s: highest is now %s (yours %s).", e.LotName, next, prev),
	}
}

// ReminderMessage warns a subscriber that a lot closes soon. holdsHighest
// says whether the subscriber currently has the top bid.
func ReminderMessage(to Contact, lot *lots.Lot, highest *bids.Bid, holdsHighest bool, exponent int32) Message {
	ends := lot.BiddingEndDate.UTC().Format(time.RFC1123)
	amount := FormatAmount(highest.Amount, exponent)

	standing := fmt.Sprintf("The current highest bid is %s.", amount)
	if holdsHighest {
		standing = fmt.Sprintf("You currently hold the highest bid at %s.", amount)
	}

	return Message{
		Subject: fmt.Sprintf("Bidding on %s closes soon", lot.Name),
		Body:    fmt.Sprintf("%s\n\nBidding on %s closes at %s.\n%s\n", greeting(to), lot.Name, ends, standing),
		SMS:     fmt.Sprintf("%s closes %s. %s", lot.Name, ends, standing),
	}
}

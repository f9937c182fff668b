package revenue

import "github.com/shopspring/decimal"

// Split computes the platform fee and vendor payout for an order total.
// The fee is rounded to cents and the payout is the remainder, so the two
// always sum exactly to the total whichever way rounding went.
func Split(total, rate decimal.Decimal) (platformFee, vendorAmount decimal.Decimal) {
	platformFee = total.Mul(rate).Round(2)
	vendorAmount = total.Sub(platformFee)
	return platformFee, vendorAmount
}

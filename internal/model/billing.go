package model

// CreditPack is a purchasable one-time bundle of generation credits.
type CreditPack struct {
	PriceID   string `json:"priceId"`
	Label     string `json:"label"`
	Credits   int    `json:"credits"`
	AmountUSD int    `json:"amountUsd"`
}

// SubscriptionTier is a recurring plan granting credits every billing month.
type SubscriptionTier struct {
	PriceID        string `json:"priceId"`
	Label          string `json:"label"`
	MonthlyCredits int    `json:"monthlyCredits"`
	AmountUSD      int    `json:"amountUsd"`
}

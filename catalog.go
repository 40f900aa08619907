package main

type CatalogGift struct {
	Code                  string
	Title                 string
	IconUrl               string
	Quantity              int64
	BaseIncomeCentsPer12h int64
}

const defaultMaxStreak int64 = 14

// Mock gift provider; to be replaced with a real source later.
var mockGifts = []CatalogGift{
	{Code: "plush_pepe", Title: "Plush Pepe", IconUrl: "", Quantity: 3, BaseIncomeCentsPer12h: 540},
	{Code: "gold_coin", Title: "Gold Coin", IconUrl: "", Quantity: 1, BaseIncomeCentsPer12h: 1200},
}

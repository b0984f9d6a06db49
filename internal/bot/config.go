package bot

import "time"

// Config holds the trading rules. Rates and quantities marked % are percentages.
type Config struct {
	Symbol        string
	BaseCurrency  string
	QuoteCurrency string
	FeeRate       float64 // per order, 0.001 is 0.1%

	QuantityOfBaseCurrencyToUse   float64 // % of the base balance sold
	QuantityOfQuoteCurrencyToUse  float64 // % of the quote balance spent on a buy
	MaxQuantityQuoteCurrencyToUse float64 // cap of a buy in quote currency, 0 disables
	MinQuantityQuoteCurrencyToUse float64 // floor of a buy in quote currency

	MinProfitableRateWhenSelling float64 // %, on top of the fee-adjusted break-even
	MaxProfitableRateWhenSelling float64 // %, sell everything once reached, 0 disables

	SellWhenPriceExceedsThresholdOfProfitability bool
	PercentageToSellOnThresholdOfProfitability   float64 // % of the position sold when crossing

	UseExitStrategyInCaseOfLosses bool
	SellWhenLossRateReaches       float64 // %, positive

	MinDropFromLastSellRate float64 // %, required drop under the last sell before buying again, 0 disables

	Sandbox              bool
	Debug                bool          // persist after every observation
	BalanceRetryInterval time.Duration // delay between balance query retries
}

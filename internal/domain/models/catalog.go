package models

// MetricSpec describes a logical metric of a report. Alternates are the
// concrete metric-type names tried in priority order; the first one with data
// wins.
type MetricSpec struct {
	Name       string
	Title      string
	Alternates []string
	OHLC       bool
	Color      string
}

// DefaultCatalog is the ordered set of metrics every report covers. The order
// is the order of pages in the document.
var DefaultCatalog = []MetricSpec{
	{Name: "price", Title: "Price", Alternates: []string{"price_usd", "price_usd_5m", "daily_closing_price_usd"}, Color: "#3b82f6"},
	{Name: "volume", Title: "Trading Volume", Alternates: []string{"volume_usd", "volume_usd_5m"}, Color: "#8b5cf6"},
	{Name: "marketcap", Title: "Market Cap", Alternates: []string{"marketcap_usd", "marketcap_usd_5m"}, Color: "#0ea5e9"},
	{Name: "active_addresses", Title: "Active Addresses", Alternates: []string{"daily_active_addresses", "active_addresses_24h"}, Color: "#10b981"},
	{Name: "transaction_volume", Title: "On-chain Transaction Volume", Alternates: []string{"transaction_volume_usd", "transaction_volume"}, Color: "#14b8a6"},
	{Name: "exchange_inflow", Title: "Exchange Inflow", Alternates: []string{"exchange_inflow_usd", "exchange_inflow"}, Color: "#ef4444"},
	{Name: "exchange_outflow", Title: "Exchange Outflow", Alternates: []string{"exchange_outflow_usd", "exchange_outflow"}, Color: "#22c55e"},
	{Name: "network_growth", Title: "Network Growth", Alternates: []string{"network_growth"}, Color: "#f59e0b"},
	{Name: "dev_activity", Title: "Development Activity", Alternates: []string{"dev_activity", "github_activity"}, Color: "#6366f1"},
	{Name: "social_volume", Title: "Social Volume", Alternates: []string{"social_volume_total"}, Color: "#ec4899"},
	{Name: "sentiment", Title: "Social Sentiment", Alternates: []string{"sentiment_weighted_total", "sentiment_balance_total"}, Color: "#a855f7"},
	{Name: "mvrv", Title: "MVRV Ratio", Alternates: []string{"mvrv_usd", "mvrv_usd_intraday"}, Color: "#f97316"},
	{Name: "whale_transactions", Title: "Whale Transactions", Alternates: []string{"whale_transaction_count_100k_usd_to_inf", "whale_transaction_count_1m_usd_to_inf"}, Color: "#0f766e"},
	{Name: "rsi", Title: "Relative Strength Index", Alternates: []string{"rsi_1d", "rsi_4h"}, Color: "#64748b"},
	{Name: "ohlc", Title: "Price OHLC", Alternates: []string{"price_usd_ohlc", "ohlc"}, OHLC: true, Color: "#1e3a8a"},
}

// MetricTypes flattens every alternate name of the catalog, in order.
func MetricTypes(catalog []MetricSpec) []string {
	var out []string
	seen := make(map[string]bool)
	for _, spec := range catalog {
		for _, alt := range spec.Alternates {
			if !seen[alt] {
				seen[alt] = true
				out = append(out, alt)
			}
		}
	}
	return out
}

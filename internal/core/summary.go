package core

// DayEntry is the aggregated display value for one calendar day.
type DayEntry struct {
	Amount Money  `json:"amount"`
	Status Status `json:"status"`
	GigID  int64  `json:"gig_id"`
}

// DayEarning is a DayEntry flattened with its date, for ordered listings.
type DayEarning struct {
	Date   Date   `json:"date"`
	Amount Money  `json:"amount"`
	Status Status `json:"status"`
	GigID  int64  `json:"gig_id"`
}

// Stats is the earnings/expenses overview.
type Stats struct {
	TotalEarnings Money `json:"total_earnings"`
	TotalExpenses Money `json:"total_expenses"`
	NetIncome     Money `json:"net_income"`
}

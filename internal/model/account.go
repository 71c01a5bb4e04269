package model

// AccountType categorizes an account for transfer heuristics.
type AccountType string

// Account type constants.
const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
)

// Account represents one of the user's own bank accounts.
type Account struct {
	ID          string
	Name        string
	Institution string
	Type        AccountType
	IsActive    bool
}

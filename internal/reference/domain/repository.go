package domain

import "context"

type Repository interface {
	ListCountries(ctx context.Context) ([]Country, error)
	ListTimezonesByCountry(ctx context.Context, countryCode string) ([]Timezone, error)
	ListCurrencies(ctx context.Context) ([]Currency, error)
	// CountryCodes and CurrencyCodes return only the codes, for validation.
	CountryCodes(ctx context.Context) ([]string, error)
	CurrencyCodes(ctx context.Context) ([]string, error)
}

// Service serves the lookup lists behind inquiry routes and quotation prices,
// and validates codes against them.
type Service interface {
	ListCountries(ctx context.Context) ([]Country, error)
	ListTimezonesByCountry(ctx context.Context, countryCode string) ([]Timezone, error)
	ListCurrencies(ctx context.Context) ([]Currency, error)
	HasCountry(ctx context.Context, code string) (bool, error)
	HasCurrency(ctx context.Context, code string) (bool, error)
}

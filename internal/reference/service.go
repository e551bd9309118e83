package reference

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/freightdesk/internal/cache"
	"github.com/smallbiznis/freightdesk/internal/reference/domain"
)

const codeSetTTL = 15 * time.Minute

const (
	countriesKey  = "countries"
	currenciesKey = "currencies"
)

type service struct {
	domain.Repository
	codes cache.Cache[string, map[string]struct{}]
}

func NewService(repo domain.Repository) domain.Service {
	return &service{
		Repository: repo,
		codes:      cache.NewTTLCache[string, map[string]struct{}](),
	}
}

func (s *service) HasCountry(ctx context.Context, code string) (bool, error) {
	return s.has(ctx, countriesKey, s.CountryCodes, code)
}

func (s *service) HasCurrency(ctx context.Context, code string) (bool, error) {
	return s.has(ctx, currenciesKey, s.CurrencyCodes, code)
}

func (s *service) has(ctx context.Context, key string, load func(context.Context) ([]string, error), code string) (bool, error) {
	set, err := s.codeSet(ctx, key, load)
	if err != nil {
		return false, err
	}
	_, ok := set[strings.ToUpper(strings.TrimSpace(code))]
	return ok, nil
}

func (s *service) codeSet(ctx context.Context, key string, load func(context.Context) ([]string, error)) (map[string]struct{}, error) {
	if set, ok := s.codes.Get(key); ok {
		return set, nil
	}
	codes, err := load(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	// an empty table is not cached so seeding takes effect immediately
	if len(set) > 0 {
		s.codes.Set(key, set, codeSetTTL)
	}
	return set, nil
}

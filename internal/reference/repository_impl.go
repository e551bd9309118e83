package reference

import (
	"context"
	"strings"

	"github.com/smallbiznis/freightdesk/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ListCountries(ctx context.Context) ([]domain.Country, error) {
	var countries []domain.Country
	err := r.db.WithContext(ctx).Order("name").Find(&countries).Error
	return countries, err
}

// ListTimezonesByCountry feeds the pickup and delivery time pickers of an
// inquiry. Countries spanning several zones list them all.
func (r *repository) ListTimezonesByCountry(ctx context.Context, countryCode string) ([]domain.Timezone, error) {
	var zones []domain.Timezone
	err := r.db.WithContext(ctx).
		Joins("JOIN country_timezones ct ON ct.timezone_name = timezones.name").
		Where("ct.country_code = ?", strings.ToUpper(strings.TrimSpace(countryCode))).
		Order("timezones.name").
		Find(&zones).Error
	return zones, err
}

// ListCurrencies returns the currencies a quotation may be priced in.
func (r *repository) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	var currencies []domain.Currency
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("code").Find(&currencies).Error
	return currencies, err
}

func (r *repository) CountryCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&domain.Country{}).Pluck("code", &codes).Error
	return codes, err
}

func (r *repository) CurrencyCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&domain.Currency{}).Where("is_active = ?", true).Pluck("code", &codes).Error
	return codes, err
}

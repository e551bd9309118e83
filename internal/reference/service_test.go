package reference

import (
	"context"
	"testing"

	"github.com/smallbiznis/freightdesk/internal/reference/domain"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/stretchr/testify/require"
)

func TestServiceValidatesCodes(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Country{}, &domain.Currency{}, &domain.Timezone{}, &domain.CountryTimezone{}))
	require.NoError(t, conn.Create(&domain.Country{Code: "DE", Name: "Germany"}).Error)
	require.NoError(t, conn.Create(&domain.Currency{Code: "EUR", Name: "Euro", MinorUnit: 2, IsActive: true}).Error)
	require.NoError(t, conn.Create(&domain.Timezone{Name: "Europe/Berlin", Region: "Europe"}).Error)
	require.NoError(t, conn.Create(&domain.CountryTimezone{CountryCode: "DE", TimezoneName: "Europe/Berlin"}).Error)

	svc := NewService(NewRepository(conn))
	ctx := context.Background()

	ok, err := svc.HasCountry(ctx, "de")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasCountry(ctx, "XX")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.HasCurrency(ctx, "eur")
	require.NoError(t, err)
	require.True(t, ok)

	zones, err := svc.ListTimezonesByCountry(ctx, "DE")
	require.NoError(t, err)
	require.Len(t, zones, 1)
	require.Equal(t, "Europe/Berlin", zones[0].Name)
}

func TestListsForRoutesAndPrices(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Country{}, &domain.Currency{}, &domain.Timezone{}, &domain.CountryTimezone{}))
	require.NoError(t, conn.Create([]domain.Country{{Code: "US", Name: "United States"}, {Code: "NL", Name: "Netherlands"}}).Error)
	require.NoError(t, conn.Create([]domain.Timezone{
		{Name: "America/New_York", Region: "America"},
		{Name: "America/Chicago", Region: "America"},
		{Name: "Europe/Amsterdam", Region: "Europe"},
	}).Error)
	require.NoError(t, conn.Create([]domain.CountryTimezone{
		{CountryCode: "US", TimezoneName: "America/New_York"},
		{CountryCode: "US", TimezoneName: "America/Chicago"},
		{CountryCode: "NL", TimezoneName: "Europe/Amsterdam"},
	}).Error)
	require.NoError(t, conn.Create(&domain.Currency{Code: "USD", Name: "US Dollar", MinorUnit: 2, IsActive: true}).Error)
	require.NoError(t, conn.Create(&domain.Currency{Code: "DEM", Name: "Deutsche Mark", MinorUnit: 2, IsActive: true}).Error)
	require.NoError(t, conn.Model(&domain.Currency{}).Where("code = ?", "DEM").Update("is_active", false).Error)

	svc := NewService(NewRepository(conn))
	ctx := context.Background()

	countries, err := svc.ListCountries(ctx)
	require.NoError(t, err)
	require.Equal(t, "NL", countries[0].Code)

	zones, err := svc.ListTimezonesByCountry(ctx, " us ")
	require.NoError(t, err)
	require.Len(t, zones, 2)
	require.Equal(t, "America/Chicago", zones[0].Name)

	currencies, err := svc.ListCurrencies(ctx)
	require.NoError(t, err)
	require.Len(t, currencies, 1)
	require.Equal(t, "USD", currencies[0].Code)

	ok, err := svc.HasCurrency(ctx, "DEM")
	require.NoError(t, err)
	require.False(t, ok)
}

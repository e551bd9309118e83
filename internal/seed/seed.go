package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	"github.com/smallbiznis/freightdesk/internal/auth/password"
	"github.com/smallbiznis/freightdesk/internal/config"
	connectiondomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	referencedomain "github.com/smallbiznis/freightdesk/internal/reference/domain"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	demoPassword      = "freightdesk"
	demoShipperEmail  = "shipper@freightdesk.local"
	demoForwarderMail = "forwarder@freightdesk.local"
)

type countrySeed struct {
	code      string
	name      string
	timezones []string
}

var countries = []countrySeed{
	{"AE", "United Arab Emirates", []string{"Asia/Dubai"}},
	{"AT", "Austria", []string{"Europe/Vienna"}},
	{"BE", "Belgium", []string{"Europe/Brussels"}},
	{"CH", "Switzerland", []string{"Europe/Zurich"}},
	{"CN", "China", []string{"Asia/Shanghai"}},
	{"DE", "Germany", []string{"Europe/Berlin"}},
	{"DK", "Denmark", []string{"Europe/Copenhagen"}},
	{"ES", "Spain", []string{"Europe/Madrid"}},
	{"FR", "France", []string{"Europe/Paris"}},
	{"GB", "United Kingdom", []string{"Europe/London"}},
	{"HK", "Hong Kong", []string{"Asia/Hong_Kong"}},
	{"ID", "Indonesia", []string{"Asia/Jakarta", "Asia/Makassar", "Asia/Jayapura"}},
	{"IN", "India", []string{"Asia/Kolkata"}},
	{"IT", "Italy", []string{"Europe/Rome"}},
	{"JP", "Japan", []string{"Asia/Tokyo"}},
	{"KR", "South Korea", []string{"Asia/Seoul"}},
	{"MY", "Malaysia", []string{"Asia/Kuala_Lumpur"}},
	{"NL", "Netherlands", []string{"Europe/Amsterdam"}},
	{"PL", "Poland", []string{"Europe/Warsaw"}},
	{"SE", "Sweden", []string{"Europe/Stockholm"}},
	{"SG", "Singapore", []string{"Asia/Singapore"}},
	{"TH", "Thailand", []string{"Asia/Bangkok"}},
	{"TR", "Turkey", []string{"Europe/Istanbul"}},
	{"US", "United States", []string{"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles"}},
	{"VN", "Vietnam", []string{"Asia/Ho_Chi_Minh"}},
}

type currencySeed struct {
	code      string
	name      string
	symbol    string
	minorUnit int16
}

var currencies = []currencySeed{
	{"AED", "UAE Dirham", "د.إ", 2},
	{"CHF", "Swiss Franc", "CHF", 2},
	{"CNY", "Chinese Yuan", "¥", 2},
	{"DKK", "Danish Krone", "kr", 2},
	{"EUR", "Euro", "€", 2},
	{"GBP", "Pound Sterling", "£", 2},
	{"HKD", "Hong Kong Dollar", "HK$", 2},
	{"IDR", "Indonesian Rupiah", "Rp", 2},
	{"INR", "Indian Rupee", "₹", 2},
	{"JPY", "Japanese Yen", "¥", 0},
	{"KRW", "South Korean Won", "₩", 0},
	{"MYR", "Malaysian Ringgit", "RM", 2},
	{"PLN", "Polish Zloty", "zł", 2},
	{"SEK", "Swedish Krona", "kr", 2},
	{"SGD", "Singapore Dollar", "S$", 2},
	{"THB", "Thai Baht", "฿", 2},
	{"TRY", "Turkish Lira", "₺", 2},
	{"USD", "US Dollar", "$", 2},
	{"VND", "Vietnamese Dong", "₫", 0},
}

// EnsureReferenceData seeds countries, timezones and currencies. Existing rows are left untouched.
func EnsureReferenceData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range countries {
			country := referencedomain.Country{Code: c.code, Name: c.name}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&country).Error; err != nil {
				return err
			}
			for _, name := range c.timezones {
				tz := referencedomain.Timezone{Name: name, Region: region(name)}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tz).Error; err != nil {
					return err
				}
				link := referencedomain.CountryTimezone{CountryCode: c.code, TimezoneName: name}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
					return err
				}
			}
		}

		for _, c := range currencies {
			symbol := c.symbol
			currency := referencedomain.Currency{
				Code:      c.code,
				Name:      c.name,
				Symbol:    &symbol,
				MinorUnit: c.minorUnit,
				IsActive:  true,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&currency).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func region(tz string) string {
	if i := strings.Index(tz, "/"); i > 0 {
		return tz[:i]
	}
	return tz
}

// EnsureDemoMarketplace bootstraps a connected shipper and forwarder pair for local use.
// Each organization gets an owner login with the demo password.
func EnsureDemoMarketplace(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipperOwner, err := ensureUserTx(ctx, tx, node, demoShipperEmail, "Demo Shipper")
		if err != nil {
			return err
		}
		forwarderOwner, err := ensureUserTx(ctx, tx, node, demoForwarderMail, "Demo Forwarder")
		if err != nil {
			return err
		}

		shipper, err := ensureOrgTx(ctx, tx, node, organizationdomain.Organization{
			Name:         "Demo Shipper GmbH",
			Slug:         "demo-shipper",
			Type:         organizationdomain.TypeShipper,
			CountryCode:  "DE",
			City:         "Hamburg",
			ContactEmail: demoShipperEmail,
			CreatedBy:    shipperOwner.ID,
		})
		if err != nil {
			return err
		}
		forwarder, err := ensureOrgTx(ctx, tx, node, organizationdomain.Organization{
			Name:         "Demo Forwarding Ltd",
			Slug:         "demo-forwarder",
			Type:         organizationdomain.TypeForwarder,
			CountryCode:  "NL",
			City:         "Rotterdam",
			ContactEmail: demoForwarderMail,
			CreatedBy:    forwarderOwner.ID,
		})
		if err != nil {
			return err
		}

		if err := ensureOwnerTx(ctx, tx, node, shipper.ID, shipperOwner.ID); err != nil {
			return err
		}
		if err := ensureOwnerTx(ctx, tx, node, forwarder.ID, forwarderOwner.ID); err != nil {
			return err
		}
		if err := ensureSubscriptionTx(ctx, tx, node, shipper.ID); err != nil {
			return err
		}
		if err := ensureSubscriptionTx(ctx, tx, node, forwarder.ID); err != nil {
			return err
		}
		return ensureConnectionTx(ctx, tx, node, shipper.ID, forwarder.ID, shipperOwner.ID, forwarderOwner.ID)
	})
}

func ensureUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email, display string) (authdomain.User, error) {
	var user authdomain.User
	err := tx.WithContext(ctx).
		Where("provider = ? AND external_id = ?", "local", email).
		First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}

	hashed, err := password.Hash(demoPassword)
	if err != nil {
		return user, err
	}
	now := time.Now().UTC()
	user = authdomain.User{
		ID:           node.Generate(),
		ExternalID:   email,
		Provider:     "local",
		DisplayName:  display,
		Email:        strings.ToLower(email),
		PasswordHash: &hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}

func ensureOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, org organizationdomain.Organization) (organizationdomain.Organization, error) {
	var existing organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", org.Slug).First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return existing, err
	}
	now := time.Now().UTC()
	org.ID = node.Generate()
	org.CreatedAt = now
	org.UpdatedAt = now
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

func ensureOwnerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID, userID snowflake.ID) error {
	now := time.Now().UTC()
	member := organizationdomain.OrganizationMember{
		ID:        node.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      organizationdomain.RoleOwner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "org_id"}, {Name: "user_id"}}, DoNothing: true}).
		Create(&member).Error
}

func ensureSubscriptionTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	limit, _ := config.DefaultTierConfig().MonthlyQuotationLimit(config.TierFree)
	now := time.Now().UTC()
	sub := subscriptiondomain.Subscription{
		ID:                    node.Generate(),
		OrgID:                 orgID,
		Tier:                  config.TierFree,
		Status:                subscriptiondomain.SubscriptionStatusActive,
		MonthlyQuotationLimit: limit,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "org_id"}}, DoNothing: true}).
		Create(&sub).Error
}

func ensureConnectionTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, shipperID, forwarderID, invitedBy, acceptedBy snowflake.ID) error {
	now := time.Now().UTC()
	conn := connectiondomain.Connection{
		ID:             node.Generate(),
		ShipperOrgID:   shipperID,
		ForwarderOrgID: forwarderID,
		Status:         connectiondomain.StatusConnected,
		InvitedByOrgID: shipperID,
		InvitedBy:      invitedBy,
		AcceptedBy:     &acceptedBy,
		AcceptedAt:     &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "shipper_org_id"}, {Name: "forwarder_org_id"}}, DoNothing: true}).
		Create(&conn).Error
}

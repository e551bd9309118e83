package migration

import (
	"fmt"

	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	connectiondomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	eventsdomain "github.com/smallbiznis/freightdesk/internal/events/domain"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
	referencedomain "github.com/smallbiznis/freightdesk/internal/reference/domain"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"gorm.io/gorm"
)

func models() []any {
	return []any{
		&authdomain.User{},
		&authdomain.Session{},
		&referencedomain.Country{},
		&referencedomain.Timezone{},
		&referencedomain.CountryTimezone{},
		&referencedomain.Currency{},
		&organizationdomain.Organization{},
		&organizationdomain.OrganizationMember{},
		&organizationdomain.OrganizationInvite{},
		&subscriptiondomain.Subscription{},
		&connectiondomain.Connection{},
		&inquirydomain.Inquiry{},
		&inquirydomain.Package{},
		&inquirydomain.Recipient{},
		&inquirydomain.Document{},
		&quotationdomain.Quotation{},
		&activitydomain.Event{},
		&eventsdomain.OutboxEvent{},
	}
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

package authorization

import "context"

// Service decides whether an actor may perform action on object inside an organization.
// actor is "system" or "user:<id>".
type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}

const (
	ObjectOrganization = "organization"
	ObjectMember       = "member"
	ObjectSubscription = "subscription"
	ObjectConnection   = "connection"
	ObjectInquiry      = "inquiry"
	ObjectQuotation    = "quotation"
	ObjectActivity     = "activity"
	ObjectDashboard    = "dashboard"
)

const (
	ActionOrganizationView   = "organization.view"
	ActionOrganizationUpdate = "organization.update"

	ActionMemberView   = "member.view"
	ActionMemberInvite = "member.invite"
	ActionMemberManage = "member.manage"

	ActionSubscriptionView   = "subscription.view"
	ActionSubscriptionChange = "subscription.change"

	ActionConnectionView   = "connection.view"
	ActionConnectionManage = "connection.manage"

	ActionInquiryView   = "inquiry.view"
	ActionInquiryWrite  = "inquiry.write"
	ActionInquiryDecide = "inquiry.decide"

	ActionQuotationView   = "quotation.view"
	ActionQuotationWrite  = "quotation.write"
	ActionQuotationDecide = "quotation.decide"

	ActionActivityView  = "activity.view"
	ActionDashboardView = "dashboard.view"

	ActionItemsExpire = "items.expire"
)

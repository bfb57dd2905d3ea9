package admin

import "errors"

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrCouponNotFound          = errors.New("coupon not found")
	ErrCouponCodeTaken         = errors.New("coupon code already exists")
	ErrDeletionRequestNotFound = errors.New("deletion request not found")

	ErrCampaignNotFound  = errors.New("email campaign not found")
	ErrTemplateNotFound  = errors.New("email template not found")
	ErrTemplateInUse     = errors.New("email template is referenced by a campaign")
	ErrRecipientNotFound = errors.New("email recipient not found")
	ErrCampaignNotDraft  = errors.New("email campaign is not in draft state")
)

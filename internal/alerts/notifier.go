// Package alerts notifies users about newly discovered high-tier
// matches over SES email and SNS SMS. Alerting is best-effort: a send
// failure is logged and dropped, never propagated into the discovery
// result.
package alerts

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"grantmatch/internal/common/aws"
	"grantmatch/internal/common/config"
	apperrors "grantmatch/internal/common/errors"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/discovery"
	"grantmatch/internal/matching/scoring"
	"grantmatch/internal/model"
)

type emailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type smsSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Notifier sends match alerts. Either channel may be nil-disabled.
type Notifier struct {
	email  emailSender
	sms    smsSender
	cfg    config.AlertsConfig
	logger logger.Logger
}

func NewNotifier(ctx context.Context, cfg config.AlertsConfig, log logger.Logger) (*Notifier, error) {
	n := &Notifier{cfg: cfg, logger: log}

	if cfg.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("create ses client: %w", err)
		}
		n.email = client
	}
	if cfg.SMS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("create sns client: %w", err)
		}
		n.sms = client
	}
	return n, nil
}

// NotifyMatches alerts the user about grants at or above the configured
// tier. Returns the number of alerts sent; failures only lower that
// count.
func (n *Notifier) NotifyMatches(ctx context.Context, profile *model.UserProfile, matches []*discovery.RankedGrant) int {
	alertable := make([]*discovery.RankedGrant, 0, len(matches))
	for _, m := range matches {
		if tierAtLeast(m.Score.Tier, n.minTier()) {
			alertable = append(alertable, m)
		}
	}
	if len(alertable) == 0 {
		return 0
	}

	sent := 0
	if n.email != nil && profile.Email != "" {
		if err := n.sendEmail(ctx, profile, alertable); err != nil {
			cerr := apperrors.NewCollaboratorError(apperrors.CollaboratorAlerts, apperrors.ErrCodeAlertSendFailed, err)
			n.logger.WithError(cerr).Warn("match alert email not sent", map[string]interface{}{
				"userId": profile.UserID,
			})
		} else {
			sent++
		}
	}
	if n.sms != nil && profile.Phone != "" {
		if err := n.sendSMS(ctx, profile, alertable); err != nil {
			cerr := apperrors.NewCollaboratorError(apperrors.CollaboratorAlerts, apperrors.ErrCodeAlertSendFailed, err)
			n.logger.WithError(cerr).Warn("match alert sms not sent", map[string]interface{}{
				"userId": profile.UserID,
			})
		} else {
			sent++
		}
	}
	return sent
}

func (n *Notifier) minTier() scoring.Tier {
	if n.cfg.MinTier == "" {
		return scoring.TierExcellent
	}
	return scoring.Tier(n.cfg.MinTier)
}

func (n *Notifier) sendEmail(ctx context.Context, profile *model.UserProfile, matches []*discovery.RankedGrant) error {
	subject := fmt.Sprintf("%d new grant matches for you", len(matches))
	if len(matches) == 1 {
		subject = "A new grant match for you"
	}

	var body strings.Builder
	body.WriteString("We found grants that fit your profile:\n\n")
	for _, m := range matches {
		fmt.Fprintf(&body, "- %s (match score %d)\n", m.Grant.Title, m.CombinedScore)
		if m.Grant.AmountText != "" {
			fmt.Fprintf(&body, "  Funding: %s\n", m.Grant.AmountText)
		}
		if m.Grant.DeadlineDate != nil {
			fmt.Fprintf(&body, "  Deadline: %s\n", m.Grant.DeadlineDate.Format("January 2, 2006"))
		}
		if m.Grant.URL != "" {
			fmt.Fprintf(&body, "  Apply: %s\n", m.Grant.URL)
		}
		body.WriteString("\n")
	}

	input := &ses.SendEmailInput{
		Source: sdk.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{profile.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: sdk.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: sdk.String(body.String())},
			},
		},
	}
	_, err := n.email.SendEmail(ctx, input)
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, profile *model.UserProfile, matches []*discovery.RankedGrant) error {
	top := matches[0]
	message := fmt.Sprintf("New grant match: %s (score %d).", top.Grant.Title, top.CombinedScore)
	if len(matches) > 1 {
		message = fmt.Sprintf("%s Plus %d more matches in your dashboard.", message, len(matches)-1)
	}

	_, err := n.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: sdk.String(profile.Phone),
		Message:     sdk.String(message),
	})
	return err
}

var tierRank = map[scoring.Tier]int{
	scoring.TierLow:       0,
	scoring.TierFair:      1,
	scoring.TierGood:      2,
	scoring.TierExcellent: 3,
}

func tierAtLeast(tier, minimum scoring.Tier) bool {
	return tierRank[tier] >= tierRank[minimum]
}

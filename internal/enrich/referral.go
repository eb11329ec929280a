package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// referralKeywords are the German and French phrases a practice site
// uses when it accepts physician referrals.
var referralKeywords = []string{
	"zuweisung",
	"überweisung",
	"zuweiser",
	"für ärzte",
	"référence",
	"pour médecins",
}

// ReferralChecker fetches a provider's website and looks for referral
// language on the landing page.
type ReferralChecker struct {
	client   *resty.Client
	keywords []string
	logger   *zap.Logger
}

// NewReferralChecker builds a checker. keywords overrides the built-in
// phrase list when non-empty.
func NewReferralChecker(keywords []string, logger *zap.Logger) *ReferralChecker {
	if len(keywords) == 0 {
		keywords = referralKeywords
	}
	return &ReferralChecker{
		client:   resty.New().SetTimeout(20 * time.Second),
		keywords: keywords,
		logger:   logger,
	}
}

// FindKeywords returns the referral keywords present on the page at
// siteURL. Unreachable sites and non-200 responses count as no mention.
func (c *ReferralChecker) FindKeywords(ctx context.Context, siteURL string) []string {
	resp, err := c.client.R().SetContext(ctx).Get(siteURL)
	if err != nil {
		c.logger.Debug("referral check failed", zap.String("url", siteURL), zap.Error(err))
		return nil
	}
	if resp.StatusCode() != 200 {
		return nil
	}
	body := strings.ToLower(string(resp.Body()))
	var found []string
	for _, kw := range c.keywords {
		if strings.Contains(body, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// MentionsReferral reports whether the page contains any referral
// keyword.
func (c *ReferralChecker) MentionsReferral(ctx context.Context, siteURL string) bool {
	return len(c.FindKeywords(ctx, siteURL)) > 0
}

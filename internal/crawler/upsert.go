package crawler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/creditmate/bankcrawler/internal/cards"
	"github.com/creditmate/bankcrawler/internal/models"
)

func (s *Service) upsertCards(ctx context.Context, bankID int64, records []cards.Record) error {
	for _, rec := range records {
		card := buildCard(bankID, rec)
		if _, err := s.store.UpsertCreditCard(ctx, card); err != nil {
			return fmt.Errorf("upsert %q: %w", card.Name, err)
		}
	}
	return nil
}

func buildCard(bankID int64, rec cards.Record) *models.CreditCard {
	fee := cards.ParseDecimal(rec["annual_fee"])
	return &models.CreditCard{
		BankID:                    bankID,
		Name:                      cleanCardName(recString(rec, "name"), fee),
		AnnualFee:                 fee,
		InterestRateAPR:           cards.ParseDecimal(rec["interest_rate_apr"]),
		LoungeAccessInternational: recString(rec, "lounge_access_international"),
		LoungeAccessDomestic:      recString(rec, "lounge_access_domestic"),
		LoungeAccessCondition:     recString(rec, "lounge_access_condition"),
		CashAdvanceFee:            recString(rec, "cash_advance_fee"),
		LatePaymentFee:            recString(rec, "late_payment_fee"),
		AnnualFeeWaiverPolicy:     recMap(rec, "annual_fee_waiver_policy"),
		RewardPointsPolicy:        recString(rec, "reward_points_policy"),
		AdditionalFeatures:        recStrings(rec, "additional_features"),
		IsActive:                  true,
	}
}

// cleanCardName substitutes a fallback name when the model returned an
// amount instead of a card name. Source tables sometimes put the fee in the
// name column, so "TK. 5,000", "US$150" or a bare number all collapse to
// "Credit Card (Annual Fee: {fee})".
func cleanCardName(name string, annualFee float64) string {
	name = strings.TrimSpace(name)
	if name == "" || looksLikeAmount(name) {
		return fmt.Sprintf("Credit Card (Annual Fee: %s)",
			strconv.FormatFloat(annualFee, 'f', -1, 64))
	}
	return name
}

func looksLikeAmount(name string) bool {
	upper := strings.ToUpper(name)
	for _, prefix := range []string{"TK.", "TK ", "US$", "USD", "$", "৳"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	hasDigit := false
	for _, r := range name {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case r == ',' || r == '.' || r == ' ':
		default:
			return false
		}
	}
	return hasDigit
}

func recString(rec cards.Record, field string) string {
	if s, ok := rec[field].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func recMap(rec cards.Record, field string) map[string]any {
	if m, ok := rec[field].(map[string]any); ok {
		return m
	}
	return nil
}

func recStrings(rec cards.Record, field string) []string {
	switch v := rec[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

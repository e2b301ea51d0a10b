package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creditmate/bankcrawler/internal/models"
)

// UpsertCreditCard inserts or fully overwrites the card identified by
// (bank_id, name). Every parse win replaces the stored row wholesale so
// stale fields never survive a re-crawl.
func (s *Store) UpsertCreditCard(ctx context.Context, card *models.CreditCard) (int64, error) {
	now := nowString()
	waiver := sql.NullString{}
	if card.AnnualFeeWaiverPolicy != nil {
		b, err := json.Marshal(card.AnnualFeeWaiverPolicy)
		if err != nil {
			return 0, fmt.Errorf("marshal waiver policy: %w", err)
		}
		waiver = sql.NullString{String: string(b), Valid: true}
	}
	features := card.AdditionalFeatures
	if features == nil {
		features = []string{}
	}
	featJSON, err := json.Marshal(features)
	if err != nil {
		return 0, fmt.Errorf("marshal additional features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credit_cards
			(bank_id, name, annual_fee, interest_rate_apr,
			 lounge_access_international, lounge_access_domestic, lounge_access_condition,
			 cash_advance_fee, late_payment_fee, annual_fee_waiver_policy,
			 reward_points_policy, additional_features, is_active, created, modified)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,1,?,?)
		ON CONFLICT (bank_id, name) DO UPDATE SET
			annual_fee = excluded.annual_fee,
			interest_rate_apr = excluded.interest_rate_apr,
			lounge_access_international = excluded.lounge_access_international,
			lounge_access_domestic = excluded.lounge_access_domestic,
			lounge_access_condition = excluded.lounge_access_condition,
			cash_advance_fee = excluded.cash_advance_fee,
			late_payment_fee = excluded.late_payment_fee,
			annual_fee_waiver_policy = excluded.annual_fee_waiver_policy,
			reward_points_policy = excluded.reward_points_policy,
			additional_features = excluded.additional_features,
			is_active = 1,
			modified = excluded.modified`,
		card.BankID, card.Name, card.AnnualFee, card.InterestRateAPR,
		card.LoungeAccessInternational, card.LoungeAccessDomestic, card.LoungeAccessCondition,
		card.CashAdvanceFee, card.LatePaymentFee, waiver,
		card.RewardPointsPolicy, string(featJSON), now, now)
	if err != nil {
		return 0, fmt.Errorf("upsert credit card: %w", err)
	}
	// LastInsertId is the connection's last inserted rowid, which on the
	// conflict path belongs to some other row. Resolve by key instead.
	return s.creditCardID(ctx, card.BankID, card.Name)
}

func (s *Store) creditCardID(ctx context.Context, bankID int64, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM credit_cards WHERE bank_id = ? AND name = ?`, bankID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// GetCreditCard loads one card by ID.
func (s *Store) GetCreditCard(ctx context.Context, id int64) (*models.CreditCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bank_id, name, annual_fee, interest_rate_apr,
		       lounge_access_international, lounge_access_domestic, lounge_access_condition,
		       cash_advance_fee, late_payment_fee, annual_fee_waiver_policy,
		       reward_points_policy, additional_features, is_active, created, modified
		FROM credit_cards WHERE id = ?`, id)
	return scanCard(row)
}

// ListCreditCardsForBank returns every card stored for a bank, active first.
func (s *Store) ListCreditCardsForBank(ctx context.Context, bankID int64) ([]*models.CreditCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_id, name, annual_fee, interest_rate_apr,
		       lounge_access_international, lounge_access_domestic, lounge_access_condition,
		       cash_advance_fee, late_payment_fee, annual_fee_waiver_policy,
		       reward_points_policy, additional_features, is_active, created, modified
		FROM credit_cards WHERE bank_id = ?
		ORDER BY is_active DESC, name`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cards []*models.CreditCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func scanCard(row rowScanner) (*models.CreditCard, error) {
	var (
		card             models.CreditCard
		waiver           sql.NullString
		featJSON         string
		active           int
		created, updated string
	)
	err := row.Scan(&card.ID, &card.BankID, &card.Name, &card.AnnualFee, &card.InterestRateAPR,
		&card.LoungeAccessInternational, &card.LoungeAccessDomestic, &card.LoungeAccessCondition,
		&card.CashAdvanceFee, &card.LatePaymentFee, &waiver,
		&card.RewardPointsPolicy, &featJSON, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if waiver.Valid && waiver.String != "" {
		if err := json.Unmarshal([]byte(waiver.String), &card.AnnualFeeWaiverPolicy); err != nil {
			return nil, fmt.Errorf("unmarshal waiver policy: %w", err)
		}
	}
	if featJSON != "" {
		if err := json.Unmarshal([]byte(featJSON), &card.AdditionalFeatures); err != nil {
			return nil, fmt.Errorf("unmarshal additional features: %w", err)
		}
	}
	card.IsActive = active != 0
	card.Created = mustTime(created)
	card.Modified = mustTime(updated)
	return &card, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"whatsflow/internal/flow"
	"whatsflow/internal/models"
	"whatsflow/internal/security"
	"whatsflow/internal/validation"

	"github.com/sirupsen/logrus"
)

// seedAccount carries the credentials models.Account keeps out of JSON.
type seedAccount struct {
	ID                 string `json:"id"`
	UserID             string `json:"userId"`
	PhoneNumberID      string `json:"phoneNumberId"`
	DisplayPhoneNumber string `json:"displayPhoneNumber"`
	AccessToken        string `json:"accessToken"`
	AIEnabled          bool   `json:"aiEnabled"`
	AIProvider         string `json:"aiProvider"`
	AIAPIKey           string `json:"aiApiKey"`
	AISystemPrompt     string `json:"aiSystemPrompt"`
}

// Seed is the import file format. Rules refer to accounts and flows by the
// ids used in the same file.
type Seed struct {
	Accounts []seedAccount `json:"accounts"`
	Flows    []models.Flow `json:"flows"`
	Rules    []models.Rule `json:"rules"`
}

type seedStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Account, error)
	RotateAccessToken(ctx context.Context, accountID, token string) error
	SaveFlow(ctx context.Context, f *models.Flow) error
	SaveRule(ctx context.Context, r *models.Rule) error
}

type importReport struct {
	AccountsCreated int
	AccountsSkipped int
	TokensRotated   int
	Flows           int
	Rules           int
}

func loadSeed(path string) (*Seed, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid seed path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// validateSeed rejects the whole file before anything is written.
func validateSeed(seed *Seed) error {
	flowIDs := make(map[string]bool, len(seed.Flows))
	for i := range seed.Flows {
		f := &seed.Flows[i]
		if f.ID == "" {
			return fmt.Errorf("flow %d (%q): id is required", i, f.Name)
		}
		if err := flow.Validate(f); err != nil {
			return fmt.Errorf("flow %s: %w", f.ID, err)
		}
		flowIDs[f.ID] = true
	}

	accountIDs := make(map[string]bool, len(seed.Accounts))
	for i, a := range seed.Accounts {
		if err := validation.ValidateRequired(a.ID, fmt.Sprintf("accounts[%d].id", i)); err != nil {
			return err
		}
		if err := validation.ValidateRequired(a.PhoneNumberID, fmt.Sprintf("accounts[%d].phoneNumberId", i)); err != nil {
			return err
		}
		switch a.AIProvider {
		case "", models.AIProviderOpenAI, models.AIProviderGemini:
		default:
			return fmt.Errorf("account %s: unknown AI provider %q", a.ID, a.AIProvider)
		}
		accountIDs[a.ID] = true
	}

	for i := range seed.Rules {
		r := &seed.Rules[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d (%q): %w", i, r.TriggerValue, err)
		}
		if !accountIDs[r.AccountID] {
			return fmt.Errorf("rule %d (%q): unknown account %q", i, r.TriggerValue, r.AccountID)
		}
		if r.HasFlow() && !flowIDs[*r.FlowID] {
			return fmt.Errorf("rule %d (%q): unknown flow %q", i, r.TriggerValue, *r.FlowID)
		}
	}
	return nil
}

// importSeed writes accounts, then flows, then rules. An account whose phone
// number id is already registered is not recreated: only its access token is
// replaced when the seed carries a different one, and its rules are attached
// to the stored account.
func importSeed(ctx context.Context, store seedStore, seed *Seed, logger *logrus.Logger) (importReport, error) {
	var report importReport
	if err := validateSeed(seed); err != nil {
		return report, err
	}

	accountIDs := make(map[string]string, len(seed.Accounts))
	for _, a := range seed.Accounts {
		existing, err := store.GetAccountByPhoneNumberID(ctx, a.PhoneNumberID)
		if err != nil {
			return report, fmt.Errorf("account %s: %w", a.ID, err)
		}
		if existing != nil {
			log := logger.WithFields(logrus.Fields{
				"seed_account_id": a.ID,
				"account_id":      existing.ID,
			})
			if a.AccessToken != "" && a.AccessToken != existing.AccessToken {
				if err := store.RotateAccessToken(ctx, existing.ID, a.AccessToken); err != nil {
					return report, fmt.Errorf("account %s: %w", a.ID, err)
				}
				log.Info("Rotated access token of registered account")
				report.TokensRotated++
			}
			log.Info("Account already registered, skipping")
			accountIDs[a.ID] = existing.ID
			report.AccountsSkipped++
			continue
		}

		account := &models.Account{
			ID:                 a.ID,
			UserID:             a.UserID,
			PhoneNumberID:      a.PhoneNumberID,
			DisplayPhoneNumber: a.DisplayPhoneNumber,
			AccessToken:        a.AccessToken,
			AIEnabled:          a.AIEnabled,
			AIProvider:         a.AIProvider,
			AIAPIKey:           a.AIAPIKey,
			AISystemPrompt:     a.AISystemPrompt,
		}
		if err := store.CreateAccount(ctx, account); err != nil {
			return report, fmt.Errorf("account %s: %w", a.ID, err)
		}
		accountIDs[a.ID] = account.ID
		report.AccountsCreated++
	}

	for i := range seed.Flows {
		if err := store.SaveFlow(ctx, &seed.Flows[i]); err != nil {
			return report, fmt.Errorf("flow %s: %w", seed.Flows[i].ID, err)
		}
		report.Flows++
	}

	for i := range seed.Rules {
		r := seed.Rules[i]
		r.AccountID = accountIDs[r.AccountID]
		if err := store.SaveRule(ctx, &r); err != nil {
			return report, fmt.Errorf("rule %q: %w", r.TriggerValue, err)
		}
		report.Rules++
	}

	return report, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
)

type seedUser struct {
	id, name, email, password, color string
	role                             models.Role
}

var seedUsers = []seedUser{
	{"yashpal", "Yashpal", "yashpal@mnyc.com", "admin123", "#7c3aed", models.RoleMaster},
	{"shubham", "Shubham", "shubham@mnyc.com", "pass123", "#3b82f6", models.RoleAgent},
	{"ravi", "Ravi", "ravi@mnyc.com", "pass123", "#10b981", models.RoleAgent},
	{"chirag", "Chirag", "chirag@mnyc.com", "pass123", "#f59e0b", models.RoleAgent},
}

// Seed creates the default users and sample claims when the store is empty.
// Users and claims are checked separately.
func (s *DefaultService) Seed(ctx context.Context) error {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("error counting users: %w", err)
	}
	if users == 0 {
		if err := s.seedUsers(ctx); err != nil {
			return err
		}
		s.logger.Info().Int("count", len(seedUsers)).Msg("seeded users")
	}

	claims, err := s.repo.CountClaims(ctx, models.ClaimQuery{Bucket: models.BucketAll})
	if err != nil {
		return fmt.Errorf("error counting claims: %w", err)
	}
	if claims == 0 {
		n, err := s.seedClaims(ctx)
		if err != nil {
			return err
		}
		s.logger.Info().Int("count", n).Msg("seeded sample claims")
	}
	return nil
}

func (s *DefaultService) seedUsers(ctx context.Context) error {
	for _, su := range seedUsers {
		hashed, err := s.hashPassword(su.password)
		if err != nil {
			return err
		}
		user := &models.User{
			OdooID:            su.id,
			Name:              su.name,
			Email:             models.Ptr(su.email),
			Password:          hashed,
			Role:              su.role,
			Avatar:            avatarFor(su.name),
			Color:             su.color,
			IsDefaultPassword: true,
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("error seeding user %s: %w", su.id, err)
		}
	}
	return nil
}

type seedClaim struct {
	claim   models.Claim
	history []models.HistoryEntry
}

func (s *DefaultService) sampleClaims() []seedClaim {
	now := s.now().UTC()
	daysAgo := func(n int) *time.Time {
		t := now.AddDate(0, 0, -n)
		return &t
	}
	dos := time.Date(2025, 12, 15, 0, 0, 0, 0, s.loc)

	return []seedClaim{
		{
			claim: models.Claim{
				ClaimNo: "CLM001", Patient: "John Doe", Balance: 750, DOS: &dos,
				VisitType: models.Ptr("Office Visit"), AcctNo: models.Ptr("ACC001"),
				PrimaryPayer: models.Ptr("Blue Cross"), BilledCharges: 1200,
				AssignedTo: models.Ptr("shubham"), SharedWith: []string{"ravi"},
				Status: models.Ptr(models.StatusWaiting), DateWorked: daysAgo(7), NextFollowUp: daysAgo(1),
			},
			history: []models.HistoryEntry{{
				Remarks:      "Initial follow-up call made. Patient aware of balance.",
				Status:       models.StatusWaiting,
				ActionTaken:  "Called patient",
				DateWorked:   *daysAgo(14),
				NextFollowUp: daysAgo(7),
				WorkedBy:     "Shubham",
			}},
		},
		{
			claim: models.Claim{
				ClaimNo: "CLM002", Patient: "Jane Smith", Balance: 300,
				AssignedTo: models.Ptr("ravi"), Status: models.Ptr(models.StatusInReview),
				DateWorked: daysAgo(3), NextFollowUp: daysAgo(-5),
			},
		},
		{
			claim: models.Claim{
				ClaimNo: "CLM003", Patient: "Robert Johnson", Balance: 1200,
				AssignedTo: models.Ptr("chirag"), Status: models.Ptr(models.StatusUnpaid),
			},
		},
		{
			claim: models.Claim{
				ClaimNo: "CLM004", Patient: "Emily Davis", Balance: 450,
				AssignedTo: models.Ptr("shubham"), Status: models.Ptr(models.StatusPaidLow),
				DateWorked: daysAgo(5),
			},
			history: []models.HistoryEntry{{
				Remarks:     "Payment received in full.",
				Status:      models.StatusPaidLow,
				ActionTaken: "Payment posted",
				DateWorked:  *daysAgo(5),
				WorkedBy:    "Shubham",
			}},
		},
		{
			claim: models.Claim{
				ClaimNo: "CLM005", Patient: "Michael Brown", Balance: 890,
				AssignedTo: models.Ptr("ravi"), Status: models.Ptr(models.StatusWaiting),
			},
		},
		{
			claim: models.Claim{ClaimNo: "CLM006", Patient: "Sarah Wilson", Balance: 560},
		},
	}
}

func (s *DefaultService) seedClaims(ctx context.Context) (int, error) {
	samples := s.sampleClaims()
	for i := range samples {
		claim := &samples[i].claim
		if err := s.repo.CreateClaim(ctx, claim); err != nil {
			return 0, fmt.Errorf("error seeding claim %s: %w", claim.ClaimNo, err)
		}
		for j := range samples[i].history {
			if err := s.repo.RecordWork(ctx, claim, &samples[i].history[j]); err != nil {
				return 0, fmt.Errorf("error seeding history for %s: %w", claim.ClaimNo, err)
			}
		}
	}
	return len(samples), nil
}

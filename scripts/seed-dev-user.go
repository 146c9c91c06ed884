package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
)

type output struct {
	UserID       string         `json:"user_id"`
	Email        string         `json:"email"`
	PlanType     model.PlanType `json:"plan_type"`
	SessionToken string         `json:"session_token"`
	APIKey       string         `json:"api_key,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		secret      = flag.String("session-secret", os.Getenv("SESSION_JWT_SECRET"), "HS256 secret shared with the API")
		userID      = flag.String("user-id", "dev-user", "User ID to seed")
		email       = flag.String("email", "dev@zeenbase.local", "User email")
		plan        = flag.String("plan", string(model.PlanPro), "Plan type (free,standard,pro,lifetime)")
		withKey     = flag.Bool("api-key", false, "Also create an API key for the user")
		ttl         = flag.Duration("ttl", 24*time.Hour, "Session token lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL and SESSION_JWT_SECRET are required")
		os.Exit(1)
	}

	planType, ok := model.ParsePlanType(strings.ToLower(*plan))
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid plan: %s\n", *plan)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := seed(ctx, repo, *userID, *email, planType); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{UserID: *userID, Email: *email, PlanType: planType}

	if *withKey {
		out.APIKey, err = ensureAPIKey(ctx, repo, *userID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	verifier := auth.NewSessionVerifier(*secret)
	out.SessionToken, err = verifier.Issue(model.Identity{ID: *userID, Email: *email, EmailVerified: true}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue session token:", err)
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.SessionToken)
		if out.APIKey != "" {
			fmt.Println(out.APIKey)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// seed writes the profile and subscription, and the first settings row
// when the table is still empty.
func seed(ctx context.Context, repo *repository.Repository, userID, email string, plan model.PlanType) error {
	if err := repo.UpsertProfile(ctx, userID, email); err != nil {
		return err
	}

	_, err := repo.UpsertSubscription(ctx, &model.Subscription{
		UserID:    userID,
		PlanType:  plan,
		Status:    model.StatusActive,
		APIAccess: plan.AllowsAPI(),
	})
	if err != nil {
		return err
	}

	_, err = repo.GetLatestSiteSettings(ctx)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		_, err = repo.InsertSiteSettings(ctx, model.DefaultSiteSettings())
	}
	return err
}

func ensureAPIKey(ctx context.Context, repo *repository.Repository, userID string) (string, error) {
	existing, err := repo.GetActiveAPIKey(ctx, userID)
	if err == nil {
		return existing.KeyValue, nil
	}
	if !errors.Is(err, repository.ErrAPIKeyNotFound) {
		return "", fmt.Errorf("lookup api key: %w", err)
	}

	value, err := auth.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	key := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    userID,
		KeyValue:  value,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		return "", fmt.Errorf("create api key: %w", err)
	}
	return value, nil
}

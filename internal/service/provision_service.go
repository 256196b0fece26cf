package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/x8080x2/CLS0-sub000/internal/models"
)

// provisionStore is the persistence surface the orchestrator writes
// through. Satisfied by the pgx repositories; faked in tests.
type provisionStore interface {
	Create(ctx context.Context, p *models.Provision) error
	Update(ctx context.Context, p *models.Provision) error
}

type stepLogger interface {
	LogAction(ctx context.Context, provisionID, action, status, message string) error
}

// ProvisionInput is one provisioning request. TelegramID is zero for
// the HTTP API path.
type ProvisionInput struct {
	TelegramID  int64
	Domain      string
	RedirectURL string
	// Template selects the redirect page variant; empty means default.
	Template string
}

// ProvisionResult aggregates the outcome of a completed run.
type ProvisionResult struct {
	ProvisionID string
	Domain      string
	Account     models.HostingAccount
	Assets      []models.RedirectAsset
	NameServers []string
	// Advisories are non-fatal failures from best-effort steps
	// (post-account hardening, edge security toggles).
	Advisories []string
}

// ScriptURLs returns the asset URLs in slot order.
func (r *ProvisionResult) ScriptURLs() []string {
	urls := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		urls[i] = a.URL
	}
	return urls
}

// ProvisionService sequences account creation, asset deployment and
// edge configuration for one domain. Each step either fully succeeds or
// the whole request fails; there are no automatic retries, and a
// hosting account created before a later failure is left in place.
type ProvisionService struct {
	hosting *HostingProvisioner
	deploy  *Deployer
	edge    *EdgeConfigurator
	store   provisionStore
	logs    stepLogger
}

func NewProvisionService(hosting *HostingProvisioner, deploy *Deployer, edge *EdgeConfigurator, store provisionStore, logs stepLogger) *ProvisionService {
	return &ProvisionService{
		hosting: hosting,
		deploy:  deploy,
		edge:    edge,
		store:   store,
		logs:    logs,
	}
}

// Provision runs the full workflow: validate, create the hosting
// account, deploy the redirect assets, configure DNS/TLS. Validation
// failures are reported before any remote call.
func (s *ProvisionService) Provision(ctx context.Context, input *ProvisionInput) (*ProvisionResult, error) {
	domain, err := ValidateDomain(input.Domain)
	if err != nil {
		return nil, err
	}
	targetURL, err := ValidateRedirectURL(input.RedirectURL)
	if err != nil {
		return nil, err
	}

	record := &models.Provision{
		ID:          uuid.New().String(),
		TelegramID:  input.TelegramID,
		Domain:      domain,
		RedirectURL: targetURL,
		Status:      models.StatusPending,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create provision record: %w", err)
	}

	log.Printf("[Provision] %s: starting for domain=%s user=%d", record.ID, domain, input.TelegramID)

	// Step 1: hosting account.
	s.transition(ctx, record, models.StatusCreatingAccount, models.StepAccount)
	account, accountAdvisories, err := s.hosting.CreateAccount(ctx, domain)
	if err != nil {
		return nil, s.fail(ctx, record, models.StepAccount, err)
	}
	record.CpanelUsername = &account.Username
	record.ServerIP = &account.ServerIP
	s.logs.LogAction(ctx, record.ID, "account_created", record.Status,
		fmt.Sprintf("Account %s created, ip %s", account.Username, account.ServerIP))

	// Step 2: redirect assets.
	s.transition(ctx, record, models.StatusDeployingAssets, models.StepDeploy)
	assets, err := s.deploy.DeployAssets(ctx, domain, account.Username, targetURL, input.Template)
	if err != nil {
		return nil, s.fail(ctx, record, models.StepDeploy, err)
	}
	record.ScriptURLs = urlsOf(assets)
	s.logs.LogAction(ctx, record.ID, "assets_deployed", record.Status,
		fmt.Sprintf("%d assets deployed", len(assets)))

	// Step 3: DNS/edge.
	s.transition(ctx, record, models.StatusConfiguringEdge, models.StepEdge)
	zone, edgeAdvisories, err := s.edge.Configure(ctx, domain, account.ServerIP)
	if err != nil {
		return nil, s.fail(ctx, record, models.StepEdge, err)
	}
	record.NameServers = zone.NameServers
	s.logs.LogAction(ctx, record.ID, "edge_configured", record.Status,
		fmt.Sprintf("Zone %s configured", zone.ZoneID))

	now := time.Now()
	record.Status = models.StatusComplete
	record.Step = ""
	record.CompletedAt = &now
	if err := s.store.Update(ctx, record); err != nil {
		log.Printf("[Provision] %s: failed to persist completion: %v", record.ID, err)
	}

	log.Printf("[Provision] %s: complete (%d urls, %d nameservers)", record.ID, len(assets), len(zone.NameServers))

	return &ProvisionResult{
		ProvisionID: record.ID,
		Domain:      domain,
		Account:     *account,
		Assets:      assets,
		NameServers: zone.NameServers,
		Advisories:  append(accountAdvisories, edgeAdvisories...),
	}, nil
}

func (s *ProvisionService) transition(ctx context.Context, record *models.Provision, status, step string) {
	record.Status = status
	record.Step = step
	if err := s.store.Update(ctx, record); err != nil {
		log.Printf("[Provision] %s: failed to persist status %s: %v", record.ID, status, err)
	}
	s.logs.LogAction(ctx, record.ID, step+"_started", status, "")
}

// fail moves the record into the absorbing failed state and returns the
// step error unchanged so the caller sees the original taxonomy.
func (s *ProvisionService) fail(ctx context.Context, record *models.Provision, step string, err error) error {
	msg := err.Error()
	record.Status = models.StatusFailed
	record.Step = step
	record.ErrorMessage = &msg
	if uerr := s.store.Update(ctx, record); uerr != nil {
		log.Printf("[Provision] %s: failed to persist failure: %v", record.ID, uerr)
	}
	s.logs.LogAction(ctx, record.ID, step+"_failed", models.StatusFailed, msg)
	log.Printf("[Provision] %s: step %s failed: %v", record.ID, step, err)
	return err
}

func urlsOf(assets []models.RedirectAsset) []string {
	urls := make([]string, len(assets))
	for i, a := range assets {
		urls[i] = a.URL
	}
	return urls
}

// UserMessage renders an error from the workflow into the single string
// shown to the end user.
func UserMessage(err error) string {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	var rErr *models.RemoteRejected
	if errors.As(err, &rErr) {
		return fmt.Sprintf("the hosting provider rejected the request: %s", rErr.Reason)
	}
	var dErr *models.PartialDeploymentFailure
	if errors.As(err, &dErr) {
		return fmt.Sprintf("deployment failed on slot %d; please re-submit the request", dErr.Slot)
	}
	if errors.Is(err, models.ErrAllCredentialsExhausted) {
		return "all edge accounts are currently failing; please try again later"
	}
	return "provisioning failed: " + err.Error()
}

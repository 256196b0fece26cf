package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/x8080x2/CLS0-sub000/internal/client"
	"github.com/x8080x2/CLS0-sub000/internal/models"
	"github.com/x8080x2/CLS0-sub000/internal/repository"
	"github.com/x8080x2/CLS0-sub000/internal/service"
)

// accountFinder resolves which cPanel account serves a domain, used by
// the upload-script path.
type accountFinder interface {
	FindAccountByDomain(ctx context.Context, domain string) (*client.Account, error)
}

type Handler struct {
	provisionService *service.ProvisionService
	billingService   *service.BillingService
	deployer         *service.Deployer
	accounts         accountFinder
	provisions       *repository.ProvisionRepository
	logs             *repository.LogRepository

	defaultRedirectURL string
}

func NewHandler(
	provisionService *service.ProvisionService,
	billingService *service.BillingService,
	deployer *service.Deployer,
	accounts accountFinder,
	provisions *repository.ProvisionRepository,
	logs *repository.LogRepository,
	defaultRedirectURL string,
) *Handler {
	return &Handler{
		provisionService:   provisionService,
		billingService:     billingService,
		deployer:           deployer,
		accounts:           accounts,
		provisions:         provisions,
		logs:               logs,
		defaultRedirectURL: defaultRedirectURL,
	}
}

// Provision handles POST /api/provision.
func (h *Handler) Provision(c *gin.Context) {
	var req models.ProvisionAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	redirectURL := req.RedirectURL
	if redirectURL == "" {
		redirectURL = h.defaultRedirectURL
	}

	result, err := h.provisionService.Provision(c.Request.Context(), &service.ProvisionInput{
		Domain:      req.Domain,
		RedirectURL: redirectURL,
	})
	if err != nil {
		status, code := classify(err)
		c.JSON(status, gin.H{"error": code, "message": service.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, models.ProvisionAPIResponse{
		Domain:         result.Domain,
		ServerIP:       result.Account.ServerIP,
		CpanelUsername: result.Account.Username,
		CpanelPassword: result.Account.Password,
		ScriptURLs:     result.ScriptURLs(),
		NameServers:    result.NameServers,
		Advisories:     result.Advisories,
	})
}

// UploadScript handles POST /api/upload-script: writes caller-supplied
// content into a fresh folder on an already provisioned domain.
func (h *Handler) UploadScript(c *gin.Context) {
	var req models.UploadScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	domain, err := service.ValidateDomain(req.Domain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	account, err := h.accounts.FindAccountByDomain(c.Request.Context(), domain)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
		return
	}

	asset, err := h.deployer.UploadScript(c.Request.Context(), domain, account.User, req.ScriptContent, req.CustomFileName)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote_rejected", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.UploadScriptResponse{
		Domain:   domain,
		Folder:   asset.Folder,
		Filename: asset.FileName,
		URL:      asset.URL,
	})
}

// GetProvision handles GET /api/provisions/:id.
func (h *Handler) GetProvision(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "provision id required"})
		return
	}

	p, err := h.provisions.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "provision not found"})
		return
	}

	c.JSON(http.StatusOK, models.ProvisionStatusResponse{
		ID:           p.ID,
		Domain:       p.Domain,
		Status:       p.Status,
		Step:         p.Step,
		ServerIP:     p.ServerIP,
		ScriptURLs:   p.ScriptURLs,
		NameServers:  p.NameServers,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	})
}

// ==================== Admin handlers ====================

// ListProvisions handles GET /api/admin/provisions.
func (h *Handler) ListProvisions(c *gin.Context) {
	provisions, err := h.provisions.List(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
		return
	}

	out := make([]models.ProvisionSummary, 0, len(provisions))
	for _, p := range provisions {
		out = append(out, models.ProvisionSummary{
			ID:           p.ID,
			TelegramID:   p.TelegramID,
			Domain:       p.Domain,
			Status:       p.Status,
			Step:         p.Step,
			ErrorMessage: p.ErrorMessage,
			CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"provisions": out})
}

// GetProvisionLogs handles GET /api/admin/provisions/:id/logs: the
// per-step audit trail for one run.
func (h *Handler) GetProvisionLogs(c *gin.Context) {
	logs, err := h.logs.GetByProvisionID(c.Request.Context(), c.Param("id"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
		return
	}

	out := make([]models.ProvisionLogEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, models.ProvisionLogEntry{
			Action:    l.Action,
			Status:    l.Status,
			Message:   l.Message,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}

// ListUsers handles GET /api/admin/users.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.billingService.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
		return
	}

	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		s := models.UserSummary{
			TelegramID:       u.TelegramID,
			Username:         u.Username,
			Balance:          u.Balance,
			TotalProvisioned: u.TotalProvisioned,
			CreatedAt:        u.CreatedAt.Format(time.RFC3339),
		}
		if u.SubscribedUntil != nil {
			until := u.SubscribedUntil.Format(time.RFC3339)
			s.SubscribedUntil = &until
		}
		out = append(out, s)
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// ListPendingDeposits handles GET /api/admin/deposits.
func (h *Handler) ListPendingDeposits(c *gin.Context) {
	deposits, err := h.billingService.PendingDeposits(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
		return
	}

	out := make([]models.DepositSummary, 0, len(deposits))
	for _, d := range deposits {
		out = append(out, depositSummary(d))
	}
	c.JSON(http.StatusOK, gin.H{"deposits": out})
}

func depositSummary(d *models.Deposit) models.DepositSummary {
	return models.DepositSummary{
		ID:         d.ID,
		TelegramID: d.TelegramID,
		Amount:     d.Amount,
		Status:     d.Status,
		CreatedAt:  d.CreatedAt.Format(time.RFC3339),
	}
}

// DecideDeposit handles POST /api/admin/deposits/:id/approve and /reject.
func (h *Handler) DecideDeposit(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var dep *models.Deposit
		var err error
		if approve {
			dep, err = h.billingService.ApproveDeposit(c.Request.Context(), id, 0)
		} else {
			dep, err = h.billingService.RejectDeposit(c.Request.Context(), id, 0)
		}
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no pending deposit with that id"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deposit": depositSummary(dep)})
	}
}

// classify maps workflow errors onto HTTP statuses.
func classify(err error) (int, string) {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, "validation_error"
	}
	var rErr *models.RemoteRejected
	if errors.As(err, &rErr) {
		return http.StatusBadGateway, "remote_rejected"
	}
	var dErr *models.PartialDeploymentFailure
	if errors.As(err, &dErr) {
		return http.StatusBadGateway, "partial_deployment_failure"
	}
	if errors.Is(err, models.ErrAllCredentialsExhausted) {
		return http.StatusServiceUnavailable, "all_credentials_exhausted"
	}
	return http.StatusInternalServerError, "internal"
}

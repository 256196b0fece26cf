package service

import (
	"context"
	"fmt"
	"log"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/x8080x2/CLS0-sub000/internal/client"
	"github.com/x8080x2/CLS0-sub000/internal/models"
)

// whmAPI is the slice of the WHM client the services depend on.
type whmAPI interface {
	CreateAccount(ctx context.Context, req *client.CreateAccountRequest) (*client.CreateAccountResponse, error)
	MakeDirectory(ctx context.Context, cpanelUser, path, name string) error
	WriteFile(ctx context.Context, cpanelUser, dir, filename, content string) error
	DeleteFile(ctx context.Context, cpanelUser, path string) error
	StartAutoSSL(ctx context.Context, cpanelUser string) error
}

// HostingProvisioner creates cPanel accounts through the reseller WHM API.
type HostingProvisioner struct {
	whm  whmAPI
	plan string

	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewHostingProvisioner(whm whmAPI, plan string) *HostingProvisioner {
	return &HostingProvisioner{
		whm:  whm,
		plan: plan,
		rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// CreateAccount provisions a hosting account for the domain and returns
// the generated credentials plus the assigned server IP. Post-creation
// hardening (default security file cleanup, AutoSSL kick) is best-effort:
// failures come back as advisories, never as errors.
func (p *HostingProvisioner) CreateAccount(ctx context.Context, domain string) (*models.HostingAccount, []string, error) {
	p.mu.Lock()
	username := DeriveUsername(domain, p.rand)
	p.mu.Unlock()

	password, err := GeneratePassword()
	if err != nil {
		return nil, nil, fmt.Errorf("generate password: %w", err)
	}

	resp, err := p.whm.CreateAccount(ctx, &client.CreateAccountRequest{
		Domain:   domain,
		Username: username,
		Password: password,
		Plan:     p.plan,
	})
	if err != nil {
		if _, reason, ok := client.RemoteReason(err); ok {
			return nil, nil, &models.RemoteRejected{Service: "whm", Op: "createacct", Reason: reason}
		}
		return nil, nil, fmt.Errorf("create account: %w", err)
	}

	account := &models.HostingAccount{
		Username: username,
		Password: password,
		ServerIP: resp.ServerIP,
	}

	var advisories []string
	if err := p.whm.DeleteFile(ctx, username, "public_html/.htaccess"); err != nil {
		log.Printf("[Hosting] Default security file cleanup failed for %s: %v", username, err)
		advisories = append(advisories, fmt.Sprintf("security file cleanup: %v", err))
	}
	if err := p.whm.StartAutoSSL(ctx, username); err != nil {
		log.Printf("[Hosting] AutoSSL trigger failed for %s: %v", username, err)
		advisories = append(advisories, fmt.Sprintf("autossl: %v", err))
	}

	return account, advisories, nil
}

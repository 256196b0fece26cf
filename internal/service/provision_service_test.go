package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/x8080x2/CLS0-sub000/internal/client"
	"github.com/x8080x2/CLS0-sub000/internal/config"
	"github.com/x8080x2/CLS0-sub000/internal/models"
	"github.com/x8080x2/CLS0-sub000/internal/rotation"
)

// ==================== fakes ====================

type fakeWHM struct {
	mu sync.Mutex

	createErr  error
	mkdirErr   error
	writeErr   error
	autosslErr error
	deleteErr  error

	createCalls int
	mkdirCalls  int
	writeCalls  int
	dirs        []string
	files       map[string]string
}

func newFakeWHM() *fakeWHM {
	return &fakeWHM{files: make(map[string]string)}
}

func (f *fakeWHM) CreateAccount(ctx context.Context, req *client.CreateAccountRequest) (*client.CreateAccountResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &client.CreateAccountResponse{StatusMsg: "Account Creation Ok", ServerIP: "198.51.100.7"}, nil
}

func (f *fakeWHM) MakeDirectory(ctx context.Context, cpanelUser, path, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirCalls++
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	f.dirs = append(f.dirs, path+"/"+name)
	return nil
}

func (f *fakeWHM) WriteFile(ctx context.Context, cpanelUser, dir, filename, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.files[dir+"/"+filename] = content
	return nil
}

func (f *fakeWHM) DeleteFile(ctx context.Context, cpanelUser, path string) error {
	return f.deleteErr
}

func (f *fakeWHM) StartAutoSSL(ctx context.Context, cpanelUser string) error {
	return f.autosslErr
}

type fakeStore struct {
	mu       sync.Mutex
	created  []*models.Provision
	statuses []string
}

func (s *fakeStore) Create(ctx context.Context, p *models.Provision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.created = append(s.created, &cp)
	return nil
}

func (s *fakeStore) Update(ctx context.Context, p *models.Provision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, p.Status)
	return nil
}

type fakeLogs struct{}

func (fakeLogs) LogAction(ctx context.Context, provisionID, action, status, message string) error {
	return nil
}

type fakeEdge struct {
	mu sync.Mutex

	zones      map[string]*client.Zone
	records    map[string][]*client.DNSRecord
	lookupErr  error
	settingErr error
	deleted    []string
	created    []*client.DNSRecord
	patched    []string
}

func newFakeEdge() *fakeEdge {
	return &fakeEdge{
		zones:   make(map[string]*client.Zone),
		records: make(map[string][]*client.DNSRecord),
	}
}

func (f *fakeEdge) GetZoneByName(ctx context.Context, name string) (*client.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.zones[name], nil
}

func (f *fakeEdge) CreateZone(ctx context.Context, name string) (*client.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z := &client.Zone{ID: "zone-" + name, Name: name, NameServers: []string{"ada.ns.cloudflare.com", "bob.ns.cloudflare.com"}}
	f.zones[name] = z
	return z, nil
}

func (f *fakeEdge) GetZoneDetails(ctx context.Context, zoneID string) (*client.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, z := range f.zones {
		if z.ID == zoneID {
			return z, nil
		}
	}
	return nil, errors.New("zone not found")
}

func (f *fakeEdge) ListDNSRecords(ctx context.Context, zoneID, recordType, name string) ([]*client.DNSRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*client.DNSRecord
	for _, r := range f.records[zoneID] {
		if r.Type == recordType && r.Name == name {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEdge) CreateDNSRecord(ctx context.Context, zoneID string, record *client.DNSRecord) (*client.DNSRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := *record
	rec.ID = "rec-" + record.Type + "-" + record.Name
	f.records[zoneID] = append(f.records[zoneID], &rec)
	f.created = append(f.created, &rec)
	return &rec, nil
}

func (f *fakeEdge) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, recordID)
	recs := f.records[zoneID][:0]
	for _, r := range f.records[zoneID] {
		if r.ID != recordID {
			recs = append(recs, r)
		}
	}
	f.records[zoneID] = recs
	return nil
}

func (f *fakeEdge) PatchZoneSetting(ctx context.Context, zoneID, setting string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingErr != nil {
		return f.settingErr
	}
	f.patched = append(f.patched, setting)
	return nil
}

func newTestService(whm *fakeWHM, edge *fakeEdge, store *fakeStore) *ProvisionService {
	rot := rotation.New([]config.EdgeCredential{{Token: "t1"}})
	cfgr := &EdgeConfigurator{
		rotator:   rot,
		newClient: func(config.EdgeCredential) edgeAPI { return edge },
	}
	return NewProvisionService(
		NewHostingProvisioner(whm, "default"),
		NewDeployer(whm, 3),
		cfgr,
		store,
		fakeLogs{},
	)
}

// ==================== tests ====================

func TestProvisionSuccess(t *testing.T) {
	whm := newFakeWHM()
	edge := newFakeEdge()
	store := &fakeStore{}
	svc := newTestService(whm, edge, store)

	result, err := svc.Provision(context.Background(), &ProvisionInput{
		TelegramID:  1001,
		Domain:      "example.com",
		RedirectURL: "https://example.org",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	urls := result.ScriptURLs()
	if len(urls) != 3 {
		t.Fatalf("expected 3 script urls, got %d", len(urls))
	}
	for i, u := range urls {
		if !strings.HasPrefix(u, "https://example.com/") {
			t.Fatalf("url %d not under domain: %s", i, u)
		}
		if u != result.Assets[i].URL {
			t.Fatalf("url order does not match slot order")
		}
	}
	if result.Account.ServerIP == "" {
		t.Fatal("expected non-empty server ip")
	}
	if len(result.Account.Username) > 8 {
		t.Fatalf("username too long: %q", result.Account.Username)
	}
	if len(result.NameServers) == 0 {
		t.Fatal("expected non-empty name server list")
	}
	if whm.mkdirCalls != 3 || whm.writeCalls != 3 {
		t.Fatalf("expected 3 mkdir/write pairs, got %d/%d", whm.mkdirCalls, whm.writeCalls)
	}

	final := store.statuses[len(store.statuses)-1]
	if final != models.StatusComplete {
		t.Fatalf("expected final status complete, got %s", final)
	}
}

func TestProvisionSecondCallIndependent(t *testing.T) {
	whm := newFakeWHM()
	edge := newFakeEdge()
	svc := newTestService(whm, edge, &fakeStore{})

	input := &ProvisionInput{Domain: "example.com", RedirectURL: "https://example.org"}
	if _, err := svc.Provision(context.Background(), input); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.Provision(context.Background(), input); err != nil {
		t.Fatalf("second call: %v", err)
	}
	// No caching or idempotence: both runs create an account.
	if whm.createCalls != 2 {
		t.Fatalf("expected 2 createacct calls, got %d", whm.createCalls)
	}
}

func TestProvisionValidationFailsBeforeRemoteCalls(t *testing.T) {
	whm := newFakeWHM()
	store := &fakeStore{}
	svc := newTestService(whm, newFakeEdge(), store)

	_, err := svc.Provision(context.Background(), &ProvisionInput{
		Domain:      "not a domain",
		RedirectURL: "https://example.org",
	})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if whm.createCalls != 0 {
		t.Fatal("validation failure must not reach the remote API")
	}
	if len(store.created) != 0 {
		t.Fatal("validation failure must not persist a record")
	}

	_, err = svc.Provision(context.Background(), &ProvisionInput{
		Domain:      "example.com",
		RedirectURL: "ftp://example.org",
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for url, got %v", err)
	}
}

func TestProvisionRemoteRejectionStopsPipeline(t *testing.T) {
	whm := newFakeWHM()
	whm.createErr = client.NewRemoteError("createacct", "domain already exists")
	edge := newFakeEdge()
	store := &fakeStore{}
	svc := newTestService(whm, edge, store)

	_, err := svc.Provision(context.Background(), &ProvisionInput{
		Domain:      "example.com",
		RedirectURL: "https://example.org",
	})

	var rErr *models.RemoteRejected
	if !errors.As(err, &rErr) {
		t.Fatalf("expected RemoteRejected, got %v", err)
	}
	if rErr.Reason != "domain already exists" {
		t.Fatalf("remote reason not surfaced verbatim: %q", rErr.Reason)
	}
	if whm.mkdirCalls != 0 || whm.writeCalls != 0 {
		t.Fatal("deployment must not run after account rejection")
	}
	if len(edge.created) != 0 {
		t.Fatal("edge configuration must not run after account rejection")
	}

	final := store.statuses[len(store.statuses)-1]
	if final != models.StatusFailed {
		t.Fatalf("expected failed status, got %s", final)
	}
}

func TestProvisionSlotFailureAborts(t *testing.T) {
	whm := newFakeWHM()
	whm.writeErr = errors.New("disk quota exceeded")
	edge := newFakeEdge()
	svc := newTestService(whm, edge, &fakeStore{})

	_, err := svc.Provision(context.Background(), &ProvisionInput{
		Domain:      "example.com",
		RedirectURL: "https://example.org",
	})

	var dErr *models.PartialDeploymentFailure
	if !errors.As(err, &dErr) {
		t.Fatalf("expected PartialDeploymentFailure, got %v", err)
	}
	if len(edge.created) != 0 {
		t.Fatal("edge configuration must not run after deployment failure")
	}
}

func TestProvisionAdvisoriesAreNonFatal(t *testing.T) {
	whm := newFakeWHM()
	whm.autosslErr = errors.New("autossl queue busy")
	whm.deleteErr = errors.New("no such file")
	svc := newTestService(whm, newFakeEdge(), &fakeStore{})

	result, err := svc.Provision(context.Background(), &ProvisionInput{
		Domain:      "example.com",
		RedirectURL: "https://example.org",
	})
	if err != nil {
		t.Fatalf("advisory failures must not fail the run: %v", err)
	}
	if len(result.Advisories) != 2 {
		t.Fatalf("expected 2 advisories, got %d: %v", len(result.Advisories), result.Advisories)
	}
}

package service

import (
	"context"
	"fmt"
	"log"

	"github.com/x8080x2/CLS0-sub000/internal/client"
	"github.com/x8080x2/CLS0-sub000/internal/config"
	"github.com/x8080x2/CLS0-sub000/internal/models"
	"github.com/x8080x2/CLS0-sub000/internal/rotation"
)

// edgeAPI is the slice of the Cloudflare client the configurator uses.
type edgeAPI interface {
	GetZoneByName(ctx context.Context, name string) (*client.Zone, error)
	CreateZone(ctx context.Context, name string) (*client.Zone, error)
	GetZoneDetails(ctx context.Context, zoneID string) (*client.Zone, error)
	ListDNSRecords(ctx context.Context, zoneID, recordType, name string) ([]*client.DNSRecord, error)
	CreateDNSRecord(ctx context.Context, zoneID string, record *client.DNSRecord) (*client.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error
	PatchZoneSetting(ctx context.Context, zoneID, setting string, value interface{}) error
}

// securityToggles is the fixed hardening battery applied to every zone.
// Each entry is applied independently and fail-open: these are defense
// in depth, not correctness-critical.
var securityToggles = []struct {
	Setting string
	Value   interface{}
}{
	{"always_use_https", "on"},
	{"automatic_https_rewrites", "on"},
	{"opportunistic_encryption", "on"},
	{"tls_1_3", "on"},
	{"min_tls_version", "1.2"},
	{"ssl", "full"},
	{"security_level", "medium"},
	{"browser_check", "on"},
	{"bot_fight_mode", "on"},
}

// EdgeConfigurator points a domain's DNS at the hosting server and
// applies the TLS/security battery, rotating across edge credentials.
type EdgeConfigurator struct {
	rotator *rotation.Rotator
	// newClient builds a per-credential client; swapped by tests.
	newClient func(config.EdgeCredential) edgeAPI
}

func NewEdgeConfigurator(rotator *rotation.Rotator) *EdgeConfigurator {
	return &EdgeConfigurator{
		rotator: rotator,
		newClient: func(cred config.EdgeCredential) edgeAPI {
			return client.NewCloudflareClient(cred)
		},
	}
}

// Configure ensures a zone exists for the domain, upserts the A and
// www CNAME records, applies the security toggles and returns the
// zone's name servers. One credential handles the whole domain: a zone
// lives on the account that created it, so the zone lookup and every
// follow-up call must share a credential. Credentials are tried in
// rotation order until one carries the domain end to end.
func (e *EdgeConfigurator) Configure(ctx context.Context, domain, serverIP string) (*models.EdgeZoneConfig, []string, error) {
	var zoneCfg *models.EdgeZoneConfig
	var advisories []string

	err := e.rotator.Do(ctx, func(cred config.EdgeCredential) error {
		cf := e.newClient(cred)

		zone, err := cf.GetZoneByName(ctx, domain)
		if err != nil {
			return fmt.Errorf("lookup zone: %w", err)
		}
		if zone == nil {
			zone, err = cf.CreateZone(ctx, domain)
			if err != nil {
				return fmt.Errorf("create zone: %w", err)
			}
			log.Printf("[Edge] Zone created for %s (id: %s)", domain, zone.ID)
		}

		if err := e.upsertRecord(ctx, cf, zone.ID, &client.DNSRecord{
			Type: "A", Name: domain, Content: serverIP, Proxied: true,
		}); err != nil {
			return fmt.Errorf("upsert A record: %w", err)
		}
		if err := e.upsertRecord(ctx, cf, zone.ID, &client.DNSRecord{
			Type: "CNAME", Name: "www." + domain, Content: domain, Proxied: false,
		}); err != nil {
			return fmt.Errorf("upsert CNAME record: %w", err)
		}

		applied := make(map[string]bool, len(securityToggles))
		for _, t := range securityToggles {
			if err := cf.PatchZoneSetting(ctx, zone.ID, t.Setting, t.Value); err != nil {
				log.Printf("[Edge] Setting %s failed for %s: %v", t.Setting, domain, err)
				advisories = append(advisories, fmt.Sprintf("setting %s: %v", t.Setting, err))
				applied[t.Setting] = false
				continue
			}
			applied[t.Setting] = true
		}

		nameServers := zone.NameServers
		if len(nameServers) == 0 {
			details, err := cf.GetZoneDetails(ctx, zone.ID)
			if err == nil {
				nameServers = details.NameServers
			} else {
				advisories = append(advisories, fmt.Sprintf("zone details: %v", err))
			}
		}

		zoneCfg = &models.EdgeZoneConfig{
			ZoneID:                  zone.ID,
			NameServers:             nameServers,
			SecuritySettingsApplied: applied,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return zoneCfg, advisories, nil
}

// upsertRecord deletes every record matching (type, name) then inserts
// one fresh record. Not atomic; a crash between delete and insert
// leaves the name without that record type until the next run.
func (e *EdgeConfigurator) upsertRecord(ctx context.Context, cf edgeAPI, zoneID string, record *client.DNSRecord) error {
	existing, err := cf.ListDNSRecords(ctx, zoneID, record.Type, record.Name)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	for _, rec := range existing {
		if err := cf.DeleteDNSRecord(ctx, zoneID, rec.ID); err != nil {
			return fmt.Errorf("delete record %s: %w", rec.ID, err)
		}
	}
	if _, err := cf.CreateDNSRecord(ctx, zoneID, record); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

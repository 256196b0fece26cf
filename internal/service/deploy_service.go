package service

import (
	"context"
	"fmt"
	"log"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/x8080x2/CLS0-sub000/internal/models"
	"github.com/x8080x2/CLS0-sub000/internal/redirect"
)

const webRoot = "public_html"

// Deployer writes redirect assets into a hosting account's web root.
type Deployer struct {
	whm       whmAPI
	slotCount int

	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewDeployer(whm whmAPI, slotCount int) *Deployer {
	if slotCount <= 0 {
		slotCount = 3
	}
	return &Deployer{
		whm:       whm,
		slotCount: slotCount,
		rand:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// DeployAssets creates one directory-plus-page pair per slot. Names and
// page bodies are generated up front; the remote mkdir/write pairs run
// concurrently and are joined. The returned slice is in slot order no
// matter which slot finishes first. Any slot failure fails the whole
// deployment; directories already created remotely stay behind.
func (d *Deployer) DeployAssets(ctx context.Context, domain, cpanelUser, targetURL, template string) ([]models.RedirectAsset, error) {
	type slot struct {
		folder  string
		file    string
		content string
	}

	d.mu.Lock()
	slots := make([]slot, d.slotCount)
	for i := range slots {
		slots[i] = slot{
			folder:  redirect.Folder(d.rand),
			file:    redirect.FileName(d.rand),
			content: redirect.Page(targetURL, template, d.rand),
		}
	}
	d.mu.Unlock()

	assets := make([]models.RedirectAsset, d.slotCount)
	errs := make([]error, d.slotCount)

	var wg sync.WaitGroup
	for i, s := range slots {
		wg.Add(1)
		go func(i int, s slot) {
			defer wg.Done()
			if err := d.deploySlot(ctx, cpanelUser, s.folder, s.file, s.content); err != nil {
				errs[i] = err
				return
			}
			assets[i] = models.RedirectAsset{
				Folder:   s.folder,
				FileName: s.file,
				URL:      fmt.Sprintf("https://%s/%s/%s", domain, s.folder, s.file),
			}
		}(i, s)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, &models.PartialDeploymentFailure{Slot: i, Err: err}
		}
	}

	log.Printf("[Deploy] %d assets deployed for %s", len(assets), domain)
	return assets, nil
}

// UploadScript writes caller-supplied content into a single fresh
// folder, used by the upload-script API path. An empty customFileName
// picks a random one.
func (d *Deployer) UploadScript(ctx context.Context, domain, cpanelUser, content, customFileName string) (*models.RedirectAsset, error) {
	d.mu.Lock()
	folder := redirect.Folder(d.rand)
	fileName := customFileName
	if fileName == "" {
		fileName = redirect.FileName(d.rand)
	}
	d.mu.Unlock()

	if err := d.deploySlot(ctx, cpanelUser, folder, fileName, content); err != nil {
		return nil, err
	}

	return &models.RedirectAsset{
		Folder:   folder,
		FileName: fileName,
		URL:      fmt.Sprintf("https://%s/%s/%s", domain, folder, fileName),
	}, nil
}

func (d *Deployer) deploySlot(ctx context.Context, cpanelUser, folder, fileName, content string) error {
	if err := d.whm.MakeDirectory(ctx, cpanelUser, webRoot, folder); err != nil {
		return err
	}
	if err := d.whm.WriteFile(ctx, cpanelUser, webRoot+"/"+folder, fileName, content); err != nil {
		return err
	}
	return nil
}

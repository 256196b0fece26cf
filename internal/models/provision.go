package models

import "time"

// Provision status constants
const (
	StatusPending         = "pending"
	StatusCreatingAccount = "creating_account"
	StatusDeployingAssets = "deploying_assets"
	StatusConfiguringEdge = "configuring_edge"
	StatusComplete        = "complete"
	StatusFailed          = "failed"
)

// Workflow step names, recorded on failure
const (
	StepAccount = "account"
	StepDeploy  = "deploy"
	StepEdge    = "edge"
)

// HostingAccount is the cPanel account created by the provisioner. It is
// observed once at creation; its later lifecycle belongs to WHM.
type HostingAccount struct {
	Username string
	Password string
	ServerIP string
}

// RedirectAsset is one deployed redirect page. folder is a 3-digit
// numeral, fileName a random name plus extension.
type RedirectAsset struct {
	Folder   string `json:"folder"`
	FileName string `json:"filename"`
	URL      string `json:"url"`
}

// EdgeZoneConfig is the outcome of the DNS/edge configuration step.
type EdgeZoneConfig struct {
	ZoneID      string
	NameServers []string
	// settingName -> applied; failed toggles stay false and are
	// reported as advisories, never as errors.
	SecuritySettingsApplied map[string]bool
}

// Provision is the persisted record of one provisioning request.
type Provision struct {
	ID             string
	TelegramID     int64
	Domain         string
	RedirectURL    string
	Status         string
	Step           string
	CpanelUsername *string
	ServerIP       *string
	ScriptURLs     []string
	NameServers    []string
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// ProvisionLog is one step-level log entry for a provision.
type ProvisionLog struct {
	ID          string
	ProvisionID string
	Action      string
	Status      string
	Message     string
	CreatedAt   time.Time
}

package models

// ==================== HTTP API DTOs ====================

// ProvisionAPIRequest is the body of POST /api/provision.
type ProvisionAPIRequest struct {
	Domain      string `json:"domain" binding:"required"`
	RedirectURL string `json:"redirect_url"`
}

// ProvisionAPIResponse is returned on a successful provisioning run.
type ProvisionAPIResponse struct {
	Domain         string   `json:"domain"`
	ServerIP       string   `json:"server_ip"`
	CpanelUsername string   `json:"cpanel_username"`
	CpanelPassword string   `json:"cpanel_password"`
	ScriptURLs     []string `json:"script_urls"`
	NameServers    []string `json:"name_servers"`
	Advisories     []string `json:"advisories,omitempty"`
}

// UploadScriptRequest is the body of POST /api/upload-script.
type UploadScriptRequest struct {
	Domain         string `json:"domain" binding:"required"`
	ScriptContent  string `json:"script_content" binding:"required"`
	CustomFileName string `json:"custom_file_name"`
}

// UploadScriptResponse describes the single uploaded file.
type UploadScriptResponse struct {
	Domain   string `json:"domain"`
	Folder   string `json:"folder"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// ==================== Admin DTOs ====================

// ProvisionSummary is one row of GET /api/admin/provisions.
type ProvisionSummary struct {
	ID           string  `json:"id"`
	TelegramID   int64   `json:"telegram_id"`
	Domain       string  `json:"domain"`
	Status       string  `json:"status"`
	Step         string  `json:"step,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// UserSummary is one row of GET /api/admin/users.
type UserSummary struct {
	TelegramID       int64   `json:"telegram_id"`
	Username         string  `json:"username,omitempty"`
	Balance          float64 `json:"balance"`
	TotalProvisioned int     `json:"total_provisioned"`
	SubscribedUntil  *string `json:"subscribed_until,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// DepositSummary is one row of GET /api/admin/deposits and the body of
// the decision responses.
type DepositSummary struct {
	ID         string  `json:"id"`
	TelegramID int64   `json:"telegram_id"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
}

// ProvisionLogEntry is one row of GET /api/admin/provisions/:id/logs.
type ProvisionLogEntry struct {
	Action    string `json:"action"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ProvisionStatusResponse is returned by GET /api/provisions/:id.
type ProvisionStatusResponse struct {
	ID           string   `json:"id"`
	Domain       string   `json:"domain"`
	Status       string   `json:"status"`
	Step         string   `json:"step,omitempty"`
	ServerIP     *string  `json:"server_ip,omitempty"`
	ScriptURLs   []string `json:"script_urls,omitempty"`
	NameServers  []string `json:"name_servers,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

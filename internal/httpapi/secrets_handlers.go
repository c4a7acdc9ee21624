package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"compscan-engine/internal/config"
	"compscan-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // config.Config
}

type setIMAPPasswordRequest struct {
	Password string `json:"password"`
}

// SetIMAPPassword stores the mailbox password in the OS keychain.
// The password never touches config.yml or the records database.
func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)

	if strings.TrimSpace(cfg.Mailbox.Username) == "" || strings.TrimSpace(cfg.Mailbox.IMAPHost) == "" {
		http.Error(w, "set mailbox.username and mailbox.imap_host first", 400)
		return
	}

	var req setIMAPPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), 400)
		return
	}

	account := secrets.IMAPKeyringAccount(cfg)
	if err := secrets.SetIMAPPassword(account, req.Password); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	writeJSON(w, map[string]any{"ok": true, "account": account})
}

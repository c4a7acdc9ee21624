package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus errors/warnings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Extract.RoleKeywords = trimList(out.Extract.RoleKeywords)
	out.Extract.LocationHints = trimList(out.Extract.LocationHints)
	out.Mailbox.SearchSubjectAny = trimList(out.Mailbox.SearchSubjectAny)

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Ingest.PollSeconds <= 0 {
		res.addErr("ingest.poll_seconds must be > 0")
	} else if out.Ingest.PollSeconds < 5 {
		res.addWarn("ingest.poll_seconds is very low (%d); directory scans may overlap.", out.Ingest.PollSeconds)
	}

	if out.Ingest.Workers <= 0 {
		res.addErr("ingest.workers must be > 0")
	}
	if out.Ingest.FilesPerSecond <= 0 {
		res.addErr("ingest.files_per_second must be > 0")
	}
	if out.Ingest.MaxFilesPerScan <= 0 {
		res.addErr("ingest.max_files_per_scan must be > 0")
	}

	if strings.TrimSpace(out.Ingest.SourceDir) == "" {
		res.addErr("ingest.source_dir is required")
	}
	if strings.TrimSpace(out.Ingest.ProcessedDir) == "" {
		res.addErr("ingest.processed_dir is required")
	}
	if strings.EqualFold(strings.TrimSpace(out.Ingest.SourceDir), strings.TrimSpace(out.Ingest.ProcessedDir)) {
		res.addErr("ingest.source_dir and ingest.processed_dir must differ")
	}

	// mailbox required fields if enabled (password is not in config; it's in the keychain)
	if out.Mailbox.Enabled {
		if strings.TrimSpace(out.Mailbox.IMAPHost) == "" {
			res.addErr("mailbox.imap_host is required when mailbox.enabled=true")
		}
		if out.Mailbox.IMAPPort == 0 {
			res.addErr("mailbox.imap_port is required when mailbox.enabled=true")
		}
		if strings.TrimSpace(out.Mailbox.Username) == "" {
			res.addErr("mailbox.username is required when mailbox.enabled=true")
		}
		if strings.TrimSpace(out.Mailbox.Mailbox) == "" {
			res.addErr("mailbox.mailbox is required when mailbox.enabled=true")
		}
		if len(out.Mailbox.SearchSubjectAny) == 0 {
			res.addWarn("mailbox.search_subject_any is empty; every unseen message will be ingested as a reply.")
		}
	}

	return out, res
}

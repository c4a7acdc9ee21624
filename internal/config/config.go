// engine/internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Ingest struct {
		SourceDir       string  `yaml:"source_dir" json:"source_dir"`
		ProcessedDir    string  `yaml:"processed_dir" json:"processed_dir"`
		PollSeconds     int     `yaml:"poll_seconds" json:"poll_seconds"`
		Workers         int     `yaml:"workers" json:"workers"`
		FilesPerSecond  float64 `yaml:"files_per_second" json:"files_per_second"`
		MaxFilesPerScan int     `yaml:"max_files_per_scan" json:"max_files_per_scan"`
	} `yaml:"ingest" json:"ingest"`

	Mailbox struct {
		Enabled          bool     `yaml:"enabled" json:"enabled"`
		IMAPHost         string   `yaml:"imap_host" json:"imap_host"`
		IMAPPort         int      `yaml:"imap_port" json:"imap_port"`
		Username         string   `yaml:"username" json:"username"`
		Mailbox          string   `yaml:"mailbox" json:"mailbox"`
		SearchSubjectAny []string `yaml:"search_subject_any" json:"search_subject_any"`
		MaxMessages      int      `yaml:"max_messages" json:"max_messages"`
	} `yaml:"mailbox" json:"mailbox"`

	Extract struct {
		RoleKeywords  []string `yaml:"role_keywords" json:"role_keywords"`
		LocationHints []string `yaml:"location_hints" json:"location_hints"`
	} `yaml:"extract" json:"extract"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

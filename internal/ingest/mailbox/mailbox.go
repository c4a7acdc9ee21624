// Package mailbox ingests compensation-thread replies from an IMAP
// mailbox: one reply per unseen message. Uses BODY.PEEK[] so nothing
// is marked \Seen until the batch finalizer runs.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/google/uuid"

	"compscan-engine/internal/domain"
	"compscan-engine/internal/ingest"
)

type Config struct {
	Host             string
	Port             int
	Username         string
	Password         string
	Mailbox          string
	SearchSubjectAny []string
	MaxMessages      int
}

type Source struct {
	Cfg Config
}

func New(cfg Config) *Source {
	return &Source{Cfg: cfg}
}

func (s *Source) Name() string { return "mailbox" }

func (s *Source) Fetch(ctx context.Context) ([]ingest.Batch, error) {
	cfg := s.Cfg
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("mailbox source needs imap host/username/password")
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 50
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c, err := dialAndLogin(ctx, addr, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}
	defer logoutAndClose(c)

	if _, err := c.Select(cfg.Mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", cfg.Mailbox, err)
	}

	msgs, err := fetchUnseen(ctx, c, cfg.MaxMessages)
	if err != nil {
		return nil, err
	}

	var replies []domain.RawReply
	var uids []imap.UID
	for _, m := range msgs {
		if !subjectMatches(m.Subject, cfg.SearchSubjectAny) {
			continue
		}
		text := bodyText(m.RawMessage)
		if text == "" {
			continue
		}
		replies = append(replies, domain.RawReply{Index: len(replies), Text: text})
		uids = append(uids, m.UID)
	}

	if len(replies) == 0 {
		return nil, nil
	}

	// Finalizer needs a fresh connection: this one closes with Fetch.
	batch := ingest.Batch{
		Source:  s.Name(),
		BatchID: uuid.NewString(),
		Origin:  cfg.Mailbox,
		Replies: replies,
		Finalize: func(ctx context.Context) error {
			return s.markSeen(ctx, addr, cfg, uids)
		},
	}
	return []ingest.Batch{batch}, nil
}

func (s *Source) markSeen(ctx context.Context, addr string, cfg Config, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	c, err := dialAndLogin(ctx, addr, cfg.Username, cfg.Password)
	if err != nil {
		return err
	}
	defer logoutAndClose(c)

	if _, err := c.Select(cfg.Mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		return fmt.Errorf("imap select %s: %w", cfg.Mailbox, err)
	}

	set := imap.UIDSetNum(uids...)
	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	cmd := c.Store(set, storeFlags, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

type message struct {
	UID        imap.UID
	Subject    string
	Date       time.Time
	RawMessage []byte
}

func dialAndLogin(ctx context.Context, addr, username, password string) (*imapclient.Client, error) {
	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// fetchUnseen pulls up to max unseen messages (newest first) with
// Envelope + full raw RFC822 bytes, peeked so \Seen stays unset.
func fetchUnseen(ctx context.Context, c *imapclient.Client, max int) ([]message, error) {
	cutoff := time.Now().AddDate(0, -3, 0)

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   cutoff,
	}

	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// newest first
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	uidSet := imap.UIDSetNum(uids...)

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchOptions := &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	}

	fetchCmd := c.Fetch(uidSet, fetchOptions)
	defer func() { _ = fetchCmd.Close() }()

	out := make([]message, 0, len(uids))
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}

		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		var m message
		m.UID = buf.UID
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.Date = buf.Envelope.Date
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			m.RawMessage = append([]byte(nil), b...)
		}
		out = append(out, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func subjectMatches(subject string, any []string) bool {
	if len(any) == 0 {
		return true
	}
	low := strings.ToLower(subject)
	for _, s := range any {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && strings.Contains(low, s) {
			return true
		}
	}
	return false
}

func logoutAndClose(c *imapclient.Client) {
	if c == nil {
		return
	}
	_ = c.Logout().Wait()
	_ = c.Close()
}

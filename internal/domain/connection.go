package domain

import (
	"strconv"
	"strings"
	"time"
)

type Engine string

const (
	EnginePostgreSQL Engine = "postgresql"
	EngineMySQL      Engine = "mysql"
	EngineMongoDB    Engine = "mongodb"
)

// IsDocumentStore reports whether the engine may omit a port and does not
// support structure-only backups.
func (e Engine) IsDocumentStore() bool {
	return e == EngineMongoDB
}

// SSLModes returns the SSL modes the engine accepts. A nil result means the
// engine does not take an SSL mode at all.
func (e Engine) SSLModes() []SSLMode {
	switch e {
	case EnginePostgreSQL:
		return []SSLMode{SSLDisable, SSLRequire, SSLVerifyCA, SSLVerifyFull}
	case EngineMySQL:
		return []SSLMode{SSLDisable, SSLRequire}
	default:
		return nil
	}
}

func (e Engine) DefaultPort() int {
	switch e {
	case EnginePostgreSQL:
		return 5432
	case EngineMySQL:
		return 3306
	case EngineMongoDB:
		return 27017
	default:
		return 0
	}
}

func (e Engine) Valid() bool {
	switch e {
	case EnginePostgreSQL, EngineMySQL, EngineMongoDB:
		return true
	}
	return false
}

type SSLMode string

const (
	SSLDisable    SSLMode = "disable"
	SSLRequire    SSLMode = "require"
	SSLVerifyCA   SSLMode = "verify-ca"
	SSLVerifyFull SSLMode = "verify-full"
)

type ConnectionStatus string

const (
	StatusProvisioning ConnectionStatus = "provisioning"
	StatusVerifying    ConnectionStatus = "verifying"
	StatusActive       ConnectionStatus = "active"
	StatusError        ConnectionStatus = "error"
)

// Connection is a summary row of a registered database connection.
type Connection struct {
	ID            string
	Name          string
	Engine        Engine
	Environment   string
	Status        ConnectionStatus
	LastBackupAt  *time.Time
	BackupStatus  *BackupStatus
	StorageUsedGB float64
}

// ConnectionDetails is the editable view of a connection. The secret is
// write-only and therefore never part of it.
type ConnectionDetails struct {
	ID          string
	Name        string
	Host        string
	Port        *int
	Engine      Engine
	Environment string
	Username    *string
	SSLMode     *SSLMode
}

// ConnectionDraft holds form input exactly as typed. Port stays a string so
// that malformed numbers surface as violations instead of parse faults.
type ConnectionDraft struct {
	Name        string
	Host        string
	Port        string
	Engine      Engine
	Environment string
	Username    string
	Secret      string
	SSLMode     SSLMode
}

// DraftFromDetails seeds an edit form from the stored connection.
func DraftFromDetails(d ConnectionDetails) ConnectionDraft {
	draft := ConnectionDraft{
		Name:        d.Name,
		Host:        d.Host,
		Engine:      d.Engine,
		Environment: d.Environment,
	}
	if d.Port != nil {
		draft.Port = strconv.Itoa(*d.Port)
	}
	if d.Username != nil {
		draft.Username = *d.Username
	}
	if d.SSLMode != nil {
		draft.SSLMode = *d.SSLMode
	}
	return draft
}

// WithDraft returns the details as they are stored after the draft was
// accepted by the server.
func (d ConnectionDetails) WithDraft(draft ConnectionDraft) ConnectionDetails {
	c := NewConnectionFromDraft(draft)
	d.Name = c.Name
	d.Host = c.Host
	d.Port = c.Port
	if c.Engine != "" {
		d.Engine = c.Engine
	}
	d.Environment = c.Environment
	d.Username = c.Username
	d.SSLMode = c.SSLMode
	return d
}

// PortValue parses the draft port. Blank input yields (nil, true).
func (d ConnectionDraft) PortValue() (*int, bool) {
	raw := strings.TrimSpace(d.Port)
	if raw == "" {
		return nil, true
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &port, true
}

// IsEmpty reports whether nothing but (possibly) the secret was entered.
func (d ConnectionDraft) IsEmpty() bool {
	return d.Name == "" && d.Host == "" && d.Port == "" && d.Engine == "" &&
		d.Environment == "" && d.Username == ""
}

// Redacted returns a copy safe to hand to view layers.
func (d ConnectionDraft) Redacted() ConnectionDraft {
	if d.Secret != "" {
		d.Secret = "********"
	}
	return d
}

// NewConnection is the create payload: every connection field except the
// identifier and status.
type NewConnection struct {
	Name        string
	Host        string
	Port        *int
	Engine      Engine
	Environment string
	Username    *string
	Secret      string
	SSLMode     *SSLMode
}

// NewConnectionFromDraft trims a validated draft into a create payload.
func NewConnectionFromDraft(d ConnectionDraft) NewConnection {
	port, _ := d.PortValue()
	return NewConnection{
		Name:        strings.TrimSpace(d.Name),
		Host:        strings.TrimSpace(d.Host),
		Port:        port,
		Engine:      d.Engine,
		Environment: strings.TrimSpace(d.Environment),
		Username:    optionalString(d.Username),
		Secret:      strings.TrimSpace(d.Secret),
		SSLMode:     optionalSSLMode(d.SSLMode),
	}
}

// DryRunCandidate is what the dry-run check receives. ConnectionID is set
// when an existing connection is being re-verified.
type DryRunCandidate struct {
	ConnectionID string
	NewConnection
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalSSLMode(m SSLMode) *SSLMode {
	if m == "" {
		return nil
	}
	return &m
}

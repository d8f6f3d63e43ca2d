package domain

import "time"

// Kind selects how the command line for a server is built.
type Kind string

const (
	KindNodeJS        Kind = "nodejs"
	KindFlask         Kind = "flask"
	KindScraperSource Kind = "scraper-source"
	KindScraperBinary Kind = "scraper-binary"
)

func (k Kind) Valid() bool {
	switch k {
	case KindNodeJS, KindFlask, KindScraperSource, KindScraperBinary:
		return true
	}
	return false
}

const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	// StatusPartial is only ever reported for stacks.
	StatusPartial = "partial"
)

// ServerConfig is one named process definition. Name is the unique key and
// never changes after creation.
type ServerConfig struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Kind      Kind       `json:"kind"`
	Command   string     `json:"command,omitempty"`
	Args      string     `json:"args,omitempty"`
	Port      int        `json:"port,omitempty"`
	VenvPath  string     `json:"venv_path,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// ServerUpdate carries a partial config change. Nil means "leave as is";
// a pointer to the empty string on VenvPath clears the virtualenv.
type ServerUpdate struct {
	Path     *string `json:"path,omitempty"`
	Kind     *Kind   `json:"kind,omitempty"`
	Command  *string `json:"command,omitempty"`
	Args     *string `json:"args,omitempty"`
	Port     *int    `json:"port,omitempty"`
	VenvPath *string `json:"venv_path,omitempty"`
}

// Stack groups servers for bulk start/stop. Members reference servers by
// name only; a member that no longer exists is treated as stopped.
type Stack struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

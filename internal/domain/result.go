package domain

import "time"

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "SUCCESS"
	OutcomeFailure OutcomeKind = "FAILED"
	OutcomeTimeout OutcomeKind = "TIMEOUT"
)

// ErrorKind classifies why a fetch or probe did not succeed.
type ErrorKind string

const (
	ErrNone               ErrorKind = ""
	ErrConnectTimeout     ErrorKind = "ConnectTimeout"
	ErrTransferTimeout    ErrorKind = "TransferTimeout"
	ErrNonSuccessResponse ErrorKind = "NonSuccessResponse"
	ErrZeroByteResult     ErrorKind = "ZeroByteResult"
	ErrDirectoryCreation  ErrorKind = "DirectoryCreationFailure"
	ErrHostUnreachable    ErrorKind = "HostUnreachable"
	ErrConnection         ErrorKind = "ConnectionError"
	ErrLocalWrite         ErrorKind = "LocalWriteFailure"
)

// IsTimeout reports whether the kind maps to a Timeout outcome.
func (k ErrorKind) IsTimeout() bool {
	return k == ErrConnectTimeout || k == ErrTransferTimeout
}

// ProbeOutcome is the result of executing one Strategy against one target.
type ProbeOutcome struct {
	Strategy   string         `json:"strategy"`
	Target     ResolvedTarget `json:"target"`
	Kind       OutcomeKind    `json:"kind"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
	HTTPStatus int            `json:"http_status,omitempty"`
	Attempts   int            `json:"attempts"`
	Duration   time.Duration  `json:"duration"`
	Size       int64          `json:"size"`
	SHA256     string         `json:"sha256,omitempty"`
	Path       string         `json:"path,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
}

func (o ProbeOutcome) Succeeded() bool { return o.Kind == OutcomeSuccess }

type ExistenceClass string

const (
	Exists      ExistenceClass = "Exists"
	NotFound    ExistenceClass = "NotFound"
	Unreachable ExistenceClass = "Unreachable"
)

// ExistenceResult is one metadata-only check of a key under one variant.
type ExistenceResult struct {
	Key        ResourceKey    `json:"key"`
	Variant    PathVariant    `json:"variant"`
	URL        string         `json:"url"`
	Class      ExistenceClass `json:"class"`
	HTTPStatus int            `json:"http_status,omitempty"`
	StatusLine string         `json:"status_line,omitempty"`
	Method     string         `json:"method"`
	Duration   time.Duration  `json:"duration"`
	Diagnostic string         `json:"diagnostic,omitempty"`
}

// Connectivity is the general reachability of the remote host.
type Connectivity struct {
	Host       string        `json:"host"`
	DNSClass   string        `json:"dns_class"`
	Reachable  bool          `json:"reachable"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Latency    time.Duration `json:"latency"`
	Message    string        `json:"message,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Package model holds the value types shared across the engine's components
// (spec §3): storage and file-set profiles, the transfer strategy, the plan,
// the operation record, and the progress events. These are plain records —
// no behaviour lives here beyond small derived-field helpers.
package model

import "time"

// StorageKind classifies an endpoint's underlying storage medium.
type StorageKind string

// Storage kinds (spec §3).
const (
	LocalSSD            StorageKind = "LocalSSD"
	LocalHDD             StorageKind = "LocalHDD"
	NetworkShare          StorageKind = "NetworkShare"
	ExternalUSB2          StorageKind = "ExternalUSB2"
	ExternalUSB3          StorageKind = "ExternalUSB3"
	ExternalThunderbolt   StorageKind = "ExternalThunderbolt"
	CloudMount            StorageKind = "CloudMount"
	UnknownStorage        StorageKind = "Unknown"
)

// StorageProfile is produced once per operation by the Storage Profiler (C2).
type StorageProfile struct {
	Path               string
	Kind               StorageKind
	FSType             string
	SeqReadMBps        float64
	SeqWriteMBps       float64
	RandomReadMBps     float64
	LatencyMs          float64
	SupportsParallelIO bool
	IsRemote           bool
	ProfiledAt         time.Time
}

// SupportsParallelIOFor reports the §3 invariant table for a given kind.
func SupportsParallelIOFor(k StorageKind) bool {
	switch k {
	case LocalHDD, ExternalUSB2:
		return false
	default:
		return true
	}
}

// FileSetProfile is produced once per operation by the File-Set Analyzer (C3).
type FileSetProfile struct {
	TotalFiles             int
	TotalBytes             int64
	TinyFiles              int // < 1 MiB
	SmallFiles             int // < 10 MiB
	MediumFiles            int // < 100 MiB
	LargeFiles             int // < 1 GiB
	HugeFiles              int // >= 1 GiB
	AvgFileSizeMiB         float64
	MaxDepth               int
	CompressibleFiles      int
	AlreadyCompressedFiles int
	ExtensionHistogram     map[string]int
}

// TransferMode is the concurrency mode chosen by Transfer Intelligence (C9).
type TransferMode string

// Transfer modes and their fixed concurrency (spec §3).
const (
	Sequential           TransferMode = "Sequential"
	ParallelConservative TransferMode = "ParallelConservative"
	ParallelModerate     TransferMode = "ParallelModerate"
	ParallelAggressive   TransferMode = "ParallelAggressive"
)

// ConcurrencyFor returns the fixed concurrency associated with a mode.
func ConcurrencyFor(m TransferMode) int {
	switch m {
	case ParallelConservative:
		return 4
	case ParallelModerate:
		return 8
	case ParallelAggressive:
		return 16
	default:
		return 1
	}
}

// TransferStrategy is produced by Transfer Intelligence (C9).
type TransferStrategy struct {
	Mode                TransferMode
	MaxConcurrentFiles  int
	BufferSizeKiB       int
	UseCompression      bool
	UseDeltaSync        bool
	Reasoning           string
	PreCalculatedTotals *PreCalculatedTotals
}

// PreCalculatedTotals caches the file-set totals a strategy was derived from,
// so the orchestrator need not re-walk the tree.
type PreCalculatedTotals struct {
	TotalFiles int
	TotalBytes int64
}

// FileEntry is one file referenced by a Plan.
type FileEntry struct {
	Src      string
	Dst      string
	Relative string
	Size     int64
	ModTime  time.Time
}

// Plan is produced by the Directory Planner (C11).
type Plan struct {
	ToCopy             []FileEntry
	ToCopyReverse      []FileEntry
	ToDelete           []string
	IdenticalSkipped   []string
	Conflicts          []string
	TotalFilesToCopy   int
	TotalBytesToCopy   int64
	TotalFilesToDelete int
}

// OperationType selects the planning/post-phase behaviour (spec §4.11/§4.12).
type OperationType string

// Operation types.
const (
	OpCopy              OperationType = "Copy"
	OpMove              OperationType = "Move"
	OpSync              OperationType = "Sync"
	OpMirror            OperationType = "Mirror"
	OpBiDirectionalSync OperationType = "BiDirectionalSync"
)

// Status is a CopyOperation's lifecycle state (spec §4.12).
type Status string

// Operation statuses.
const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusPaused     Status = "Paused"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusCancelled  Status = "Cancelled"
)

// CompletedFileInfo records one finished file for resume skip-logic (spec §3).
type CompletedFileInfo struct {
	RelativePath string
	FileSize     int64
	LastModified time.Time
	CompletedAt  time.Time
}

// CopyOperation is the durable, owned-by-the-orchestrator operation record
// (spec §3). Package engine updates the counters mutated concurrently by
// workers (BytesTransferred, FilesTransferred, TotalCompressedBytes,
// TotalUncompressedBytes, FilesCompressed) and CompletedFiles under a single
// mutex; no sync/atomic operations are used on them. This struct itself is
// the plain-data shape persisted to JSON by the Resume Store.
type CopyOperation struct {
	ID                     string
	SourcePath             string
	DestinationPath        string
	OperationType          OperationType
	Status                 Status
	StartTime              time.Time
	EndTime                *time.Time
	TotalBytes             int64
	BytesTransferred       int64
	TotalFiles             int
	FilesTransferred       int
	CurrentFile            *string
	ErrorMessage           string
	CanResume              bool
	CompletedFiles         []CompletedFileInfo
	FilesDeleted           int
	FilesSkipped           int
	FilesFailed            int
	TotalCompressedBytes   int64
	TotalUncompressedBytes int64
	FilesCompressed        int
	Strategy               *TransferStrategy `json:",omitempty"`
}

// FileTransferProgress is emitted by the File Operator (C10) per file.
type FileTransferProgress struct {
	OperationID                string
	FileName                   string
	SourcePath                 string
	DestinationPath            string
	FileSize                   int64
	BytesTransferred           int64
	CompressedBytesTransferred int64
	IsCompressed               bool
	CompressionRatio           float64
	CurrentSpeedBytesPerSecond float64
	AverageSpeedBytesPerSecond float64
	RetryAttempt               int
	MaxRetryAttempts           int
	IsRetrying                 bool
	LastError                  string
}

// PercentComplete is the derived field from spec §3.
func (p FileTransferProgress) PercentComplete() float64 {
	if p.FileSize <= 0 {
		return 0
	}

	return float64(p.BytesTransferred) * 100 / float64(p.FileSize) //nolint:mnd
}

// RetryConfiguration is the policy C1 executes under (spec §3 defaults).
type RetryConfiguration struct {
	MaxAttempts       int
	InitialDelayMs    int
	MaxDelayMs        int
	BackoffMultiplier float64
	UseJitter         bool
}

// DefaultRetryConfiguration returns the spec §3 defaults.
func DefaultRetryConfiguration() RetryConfiguration {
	return RetryConfiguration{
		MaxAttempts:       3,   //nolint:mnd
		InitialDelayMs:    1000, //nolint:mnd
		MaxDelayMs:        30000, //nolint:mnd
		BackoffMultiplier: 2.0,
		UseJitter:         true,
	}
}

// Trend classifies a performance sample window (spec §3/§4.8).
type Trend string

// Trend values.
const (
	TrendIncreasing Trend = "Increasing"
	TrendStable     Trend = "Stable"
	TrendDecreasing Trend = "Decreasing"
	TrendVolatile   Trend = "Volatile"
)

// PerformanceSample is one speed observation (spec §3).
type PerformanceSample struct {
	Timestamp   time.Time
	SpeedMBps   float64
	Concurrency int
}

// PerformanceMetrics is the aggregate view over a sample window (spec §3).
type PerformanceMetrics struct {
	Current          float64
	Average          float64
	Peak             float64
	MovingAverage    float64
	Trend            Trend
	EfficiencyRatio  float64
	Bottleneck       string
	AdaptationCount  int
}

// SyncOperationSummary is the dry-run result of analyseSync (spec §6).
type SyncOperationSummary struct {
	FilesToCopy       int
	FilesToDelete     int
	Identical         int
	TotalBytesToCopy  int64
	TotalBytesToDelete int64
	OperationType     OperationType
}

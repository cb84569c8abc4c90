package domain

import (
	"slices"
	"strings"
	"time"
)

// EventLevel は進捗ログ 1 行の重要度です。
type EventLevel string

const (
	LevelInfo  EventLevel = "info"
	LevelWarn  EventLevel = "warn"
	LevelError EventLevel = "error"
)

// ProgressEvent は進捗ログの 1 行です。追記専用で、書き換えはしません。
type ProgressEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
}

// String は "[HH:MM:SS] message" 形式の 1 行を返します。
func (e ProgressEvent) String() string {
	return "[" + e.Timestamp.Format(time.TimeOnly) + "] " + e.Message
}

// RenderLog はイベント列を 1 つのテキストブロックに連結します。
func RenderLog(events []ProgressEvent) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Phase は生成処理の状態です。
type Phase string

const (
	PhaseValidating       Phase = "validating"
	PhasePreparingStorage Phase = "preparing_storage"
	PhaseConnectingClient Phase = "connecting_client"
	PhaseBuildingPayload  Phase = "building_payload"
	PhaseCalling          Phase = "calling"
	PhaseHandlingResponse Phase = "handling_response"
	PhaseSuccess          Phase = "success"
	PhaseNoImages         Phase = "no_images"
	PhaseFailure          Phase = "failure"
)

// Terminal は終端状態かどうかを返します。
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseNoImages || p == PhaseFailure
}

// FailureKind は PhaseFailure に至った原因の分類です。
type FailureKind string

const (
	FailureNone               FailureKind = ""
	FailureMissingCredential  FailureKind = "missing_credential"
	FailureStorage            FailureKind = "storage_error"
	FailureClientInit         FailureKind = "client_init_error"
	FailureConfigIncompatible FailureKind = "config_incompatible"
	FailureRemote             FailureKind = "remote_error"
	FailureSave               FailureKind = "save_error"
	FailureCanceled           FailureKind = "canceled"
)

// Snapshot は生成処理のある時点の状態です。
// 受け取った側が保持し続けても後続の状態で書き換わらないよう、スライスはすべてコピーで保持します。
type Snapshot struct {
	RunID   string          `json:"run_id"`
	Phase   Phase           `json:"phase"`
	Attempt int             `json:"attempt,omitempty"`
	Status  string          `json:"status"`
	Log     []ProgressEvent `json:"log"`
	Images  []string        `json:"images,omitempty"`
	// History が nil の場合は「履歴表示を更新しない」を意味します。
	History []string    `json:"history"`
	Failure FailureKind `json:"failure,omitempty"`
	Err     error       `json:"-"`
}

// NewSnapshot は渡されたスライスを複製してスナップショットを作成します。
func NewSnapshot(phase Phase, status string, log []ProgressEvent) Snapshot {
	return Snapshot{
		Phase:  phase,
		Status: status,
		Log:    slices.Clone(log),
	}
}

// Terminal は終端スナップショットかどうかを返します。
func (s Snapshot) Terminal() bool {
	return s.Phase.Terminal()
}

// LogText はログ全体をテキストとして返します。
func (s Snapshot) LogText() string {
	return RenderLog(s.Log)
}

// Result は終端スナップショットを GenerationResult に変換します。
func (s Snapshot) Result() GenerationResult {
	return GenerationResult{
		Images:  slices.Clone(s.Images),
		Status:  s.Status,
		History: slices.Clone(s.History),
	}
}

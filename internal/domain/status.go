package domain

import "strings"

// DisplayStatus is the visual state of a job or a stage cell.
// Values include DisplayPending, DisplayActive, DisplayCompleted, and DisplayFailed.
type DisplayStatus string

const (
	DisplayPending   DisplayStatus = "pending"
	DisplayActive    DisplayStatus = "active"
	DisplayCompleted DisplayStatus = "completed"
	DisplayFailed    DisplayStatus = "failed"
)

// IconKind names the icon a view draws for a DisplayStatus.
type IconKind string

const (
	IconClock   IconKind = "clock"
	IconSpinner IconKind = "spinner"
	IconCheck   IconKind = "check"
	IconAlert   IconKind = "alert"
)

// StatusView carries every presentation hint derived from a classification.
type StatusView struct {
	Status DisplayStatus `json:"status"`
	Icon   IconKind      `json:"icon"`
	Badge  string        `json:"badge"`
	Tone   string        `json:"tone"`
}

var badgeLabels = map[Stage]string{
	StagePending:             "QUEUED",
	StageScriptGeneration:    "SCRIPT",
	StageAudioGeneration:     "AUDIO",
	StageVideoCreation:       "VIDEO",
	StageVideoProcessing:     "PROCESSING",
	StageThumbnailGeneration: "THUMBNAIL",
	StageFileOrganization:    "STORAGE",
	StageSchedulingUpload:    "SCHEDULING",
	StageReadyForUpload:      "READY",
	StageUploading:           "UPLOADING",
	StageCompleted:           "PUBLISHED",
	StageFailed:              "FAILED",
}

var statusIcons = map[DisplayStatus]IconKind{
	DisplayPending:   IconClock,
	DisplayActive:    IconSpinner,
	DisplayCompleted: IconCheck,
	DisplayFailed:    IconAlert,
}

var statusTones = map[DisplayStatus]string{
	DisplayPending:   "muted",
	DisplayActive:    "info",
	DisplayCompleted: "success",
	DisplayFailed:    "danger",
}

// Classify maps a (stage, progress) pair to its display status.
// Every view renders through this function; unknown stages classify as pending.
func Classify(stage Stage, progress int) DisplayStatus {
	switch {
	case stage == StageFailed:
		return DisplayFailed
	case stage == StageCompleted || progress == 100:
		return DisplayCompleted
	case stage.IsWorking():
		return DisplayActive
	default:
		return DisplayPending
	}
}

// Icon returns the icon for a display status.
func (d DisplayStatus) Icon() IconKind {
	if icon, ok := statusIcons[d]; ok {
		return icon
	}
	return IconClock
}

// Tone returns the visual tone (CSS modifier) for a display status.
func (d DisplayStatus) Tone() string {
	if tone, ok := statusTones[d]; ok {
		return tone
	}
	return "muted"
}

// BadgeLabel returns the fixed label for a stage. Values the dashboard does not
// know yet render as their upper-spaced raw value, e.g. "color_grading" -> "COLOR GRADING".
func BadgeLabel(raw string) string {
	if label, ok := badgeLabels[Stage(raw)]; ok {
		return label
	}
	normalized := strings.Join(strings.FieldsFunc(raw, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
	if normalized == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(normalized)
}

// Describe returns the full presentation for a job at (stage, progress).
func Describe(stage Stage, progress int) StatusView {
	status := Classify(stage, progress)
	return StatusView{
		Status: status,
		Icon:   status.Icon(),
		Badge:  BadgeLabel(string(stage)),
		Tone:   status.Tone(),
	}
}

// DescribeCell returns the presentation for a stage cell already classified by position.
func DescribeCell(stage Stage, status DisplayStatus) StatusView {
	return StatusView{
		Status: status,
		Icon:   status.Icon(),
		Badge:  BadgeLabel(string(stage)),
		Tone:   status.Tone(),
	}
}

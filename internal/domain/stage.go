package domain

import (
	"fmt"
	"strings"
)

// Stage is one step of the content production pipeline.
// The set is closed: values outside the catalog are rejected by ParseStage.
type Stage string

const (
	StagePending             Stage = "pending"
	StageScriptGeneration    Stage = "script_generation"
	StageAudioGeneration     Stage = "audio_generation"
	StageVideoCreation       Stage = "video_creation"
	StageVideoProcessing     Stage = "video_processing"
	StageThumbnailGeneration Stage = "thumbnail_generation"
	StageFileOrganization    Stage = "file_organization"
	StageSchedulingUpload    Stage = "scheduling_upload"
	StageReadyForUpload      Stage = "ready_for_upload"
	StageUploading           Stage = "uploading"
	StageCompleted           Stage = "completed"
	StageFailed              Stage = "failed"
)

// stageOrder is the total order used for advancement and comparison.
// StageFailed is terminal and deliberately absent.
var stageOrder = []Stage{
	StagePending,
	StageScriptGeneration,
	StageAudioGeneration,
	StageVideoCreation,
	StageVideoProcessing,
	StageThumbnailGeneration,
	StageFileOrganization,
	StageSchedulingUpload,
	StageReadyForUpload,
	StageUploading,
	StageCompleted,
}

var stageIndex = func() map[Stage]int {
	m := make(map[Stage]int, len(stageOrder))
	for i, s := range stageOrder {
		m[s] = i
	}
	return m
}()

// Ordering is the result of comparing two stages.
type Ordering int

const (
	Before Ordering = -1
	Same   Ordering = 0
	After  Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "same"
	}
}

// ParseStage validates a raw stage value at the write boundary.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.TrimSpace(raw))
	if s == StageFailed {
		return s, nil
	}
	if _, ok := stageIndex[s]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, raw)
}

// IsKnown reports whether s is a catalog member, including StageFailed.
func (s Stage) IsKnown() bool {
	if s == StageFailed {
		return true
	}
	_, ok := stageIndex[s]
	return ok
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// IsWorking reports whether s denotes ongoing production work.
func (s Stage) IsWorking() bool {
	_, ok := stageIndex[s]
	return ok && s != StagePending && s != StageCompleted
}

func (s Stage) String() string {
	return string(s)
}

// Order returns the position of s in the pipeline sequence.
func Order(s Stage) (int, error) {
	idx, ok := stageIndex[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q has no pipeline position", ErrInvalidStage, string(s))
	}
	return idx, nil
}

// Compare orders a relative to b.
func Compare(a, b Stage) (Ordering, error) {
	ia, err := Order(a)
	if err != nil {
		return Same, err
	}
	ib, err := Order(b)
	if err != nil {
		return Same, err
	}
	switch {
	case ia < ib:
		return Before, nil
	case ia > ib:
		return After, nil
	default:
		return Same, nil
	}
}

// Next returns the stage that directly follows s.
func Next(s Stage) (Stage, error) {
	if s.IsTerminal() {
		return "", fmt.Errorf("%w: %s", ErrTerminalStage, s)
	}
	idx, err := Order(s)
	if err != nil {
		return "", err
	}
	return stageOrder[idx+1], nil
}

// OrderedStages returns the full ordered sequence, pending through completed.
func OrderedStages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// PipelineStages returns the working stages shown in stage-by-stage overview rows.
func PipelineStages() []Stage {
	out := make([]Stage, 0, len(stageOrder)-2)
	for _, s := range stageOrder {
		if s.IsWorking() {
			out = append(out, s)
		}
	}
	return out
}

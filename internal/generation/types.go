// Package generation talks to the video-generation provider: it submits a
// task, polls it until it reaches a terminal state, and extracts the video
// URL or a classified failure.
package generation

import (
	"fmt"
	"strings"
)

// Kind is the type of generation job.
type Kind int

const (
	TextToVideo Kind = iota
	ImageToVideo
)

func (k Kind) String() string {
	switch k {
	case TextToVideo:
		return "TEXT_TO_VIDEO"
	case ImageToVideo:
		return "IMAGE_TO_VIDEO"
	default:
		return "UNKNOWN"
	}
}

// Aspect is the provider's aspect_ratio value.
type Aspect string

const (
	Landscape Aspect = "landscape"
	Portrait  Aspect = "portrait"
)

// AspectFor maps a user-selected frame format to the provider aspect.
// "16:9" is landscape; "9:16", unset and unknown formats are portrait.
func AspectFor(format string) Aspect {
	if strings.TrimSpace(format) == "16:9" {
		return Landscape
	}
	return Portrait
}

// JobState is the lifecycle position of a job.
type JobState int

const (
	Submitted JobState = iota
	Polling
	Succeeded
	Failed
)

func (s JobState) String() string {
	switch s {
	case Submitted:
		return "SUBMITTED"
	case Polling:
		return "POLLING"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions can happen.
func (s JobState) Terminal() bool {
	return s == Succeeded || s == Failed
}

// FailureKind classifies why a job did not produce a video.
type FailureKind int

const (
	// SubmissionFailed: the provider accepted the request but returned no task ID.
	SubmissionFailed FailureKind = iota
	// ProviderFailed: the provider reported state=failed.
	ProviderFailed
	// ExtractionFailed: success was reported but no video URL could be read.
	ExtractionFailed
	// TransportFailed: a network or HTTP error at any step.
	TransportFailed
)

func (k FailureKind) String() string {
	switch k {
	case SubmissionFailed:
		return "SubmissionFailed"
	case ProviderFailed:
		return "ProviderFailed"
	case ExtractionFailed:
		return "ExtractionFailed"
	case TransportFailed:
		return "TransportFailed"
	default:
		return "Unknown"
	}
}

// Failure is the terminal error of a job.
type Failure struct {
	Kind   FailureKind
	Reason string // provider-supplied reason text, when available
	Err    error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	switch {
	case f.Err != nil && f.Reason != "":
		return fmt.Sprintf("generation: %s (%s): %v", f.Kind, f.Reason, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("generation: %s: %v", f.Kind, f.Err)
	default:
		return fmt.Sprintf("generation: %s (%s)", f.Kind, f.Reason)
	}
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// Request describes a job to submit.
type Request struct {
	Kind     Kind
	Aspect   Aspect
	Prompt   string
	ImageURL string // ImageToVideo only
}

// Outcome is the terminal result of a job: either URL or Failure is set.
type Outcome struct {
	URL     string
	Failure *Failure
}

// Succeeded reports whether the job produced a video.
func (o Outcome) Succeeded() bool {
	return o.Failure == nil && o.URL != ""
}

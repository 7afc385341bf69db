// Package types provides type definitions for structured data used throughout the triage bot.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
)

// TraceDocument is one recorded execution of a mobile application: device
// information, the ordered UI-interaction steps and the app under test.
type TraceDocument struct {
	Date             string `json:"date"`
	DeviceDimensions string `json:"deviceDimensions"`
	ExecutionType    string `json:"executionType"`
	ExecutionNum     int    `json:"executionNum"`
	Crash            bool   `json:"crash"`
	DeviceName       string `json:"deviceName"`
	ElapsedTime      int64  `json:"elapsedTime"`
	Orientation      int    `json:"orientation"`
	MainActivity     string `json:"mainActivity"`
	AndroidVersion   string `json:"androidVersion"`
	Steps            []Step `json:"steps"`
	App              App    `json:"app"`
}

// Step is a single UI interaction. Only Action, SequenceStep and Screenshot
// are required; the rest describe the interaction when the recorder captured it.
type Step struct {
	Action       int    `json:"action"`
	SequenceStep int    `json:"sequenceStep"`
	Screenshot   string `json:"screenshot"`

	TextEntry       *string `json:"textEntry,omitempty"`
	AreaEdit        *int    `json:"areaEdit,omitempty"`
	HashStep        *string `json:"hashStep,omitempty"`
	AreaView        *int    `json:"areaView,omitempty"`
	AreaList        *int    `json:"areaList,omitempty"`
	AreaSelect      *int    `json:"areaSelect,omitempty"`
	InitialX        *int    `json:"initialX,omitempty"`
	InitialY        *int    `json:"initialY,omitempty"`
	FinalX          *int    `json:"finalX,omitempty"`
	FinalY          *int    `json:"finalY,omitempty"`
	UseCaseTranType *int    `json:"useCaseTranType,omitempty"`
	Network         *bool   `json:"network,omitempty"`
	Acellerometer   *bool   `json:"acellerometer,omitempty"` // recorder's spelling
	Magentometer    *bool   `json:"magentometer,omitempty"`  // recorder's spelling
	Temperature     *bool   `json:"temperature,omitempty"`
	GPS             *bool   `json:"gps,omitempty"`
}

// App describes the application the trace was recorded against.
type App struct {
	Name         string `json:"name"`
	PackageName  string `json:"packageName"`
	MainActivity string `json:"mainActivity"`
	Version      string `json:"version"`
	ApkPath      string `json:"apkPath"`
}

// TraceSummary is a compact view of a trace used in logs and CLI output.
type TraceSummary struct {
	PackageName    string `json:"package_name"`
	AppVersion     string `json:"app_version"`
	DeviceName     string `json:"device_name"`
	AndroidVersion string `json:"android_version"`
	StepCount      int    `json:"step_count"`
	Screenshots    int    `json:"screenshots"`
	Crash          bool   `json:"crash"`
}

// DecodeTrace decodes a serialized trace document. It does not validate the
// document; callers validate against the trace schema first.
func DecodeTrace(data []byte) (*TraceDocument, error) {
	var doc TraceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return &doc, nil
}

// Summary returns the compact view of the trace.
func (t *TraceDocument) Summary() TraceSummary {
	s := TraceSummary{
		PackageName:    t.App.PackageName,
		AppVersion:     t.App.Version,
		DeviceName:     t.DeviceName,
		AndroidVersion: t.AndroidVersion,
		StepCount:      len(t.Steps),
		Crash:          t.Crash,
	}
	for _, step := range t.Steps {
		if step.Screenshot != "" {
			s.Screenshots++
		}
	}
	return s
}

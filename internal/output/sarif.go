package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/issue"
)

// SARIFWriter outputs issues in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *correlator.Report) error {
	sarif := buildSARIF(report)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling SARIF")
	}
	_, err = w.Write(data)
	if err != nil {
		return errors.Wrap(err, "writing SARIF")
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool              `json:"tool"`
	Results           []sarifResult          `json:"results"`
	AutomationDetails *sarifAutomationDetail `json:"automationDetails,omitempty"`
	VersionControl    []sarifVersionControl  `json:"versionControlProvenance,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

type sarifAutomationDetail struct {
	ID string `json:"id"`
}

type sarifVersionControl struct {
	RevisionID string `json:"revisionId"`
}

func buildSARIF(report *correlator.Report) sarifLog {
	var rules []sarifRule
	seen := make(map[string]bool)
	results := make([]sarifResult, 0, len(report.Issues))

	for _, is := range report.Issues {
		ruleID := ruleIDFor(is)
		if !seen[ruleID] {
			seen[ruleID] = true
			rules = append(rules, sarifRule{
				ID:               ruleID,
				Name:             is.Tool.DisplayName() + " " + is.Type.DisplayName(),
				ShortDescription: sarifMessage{Text: is.Tool.DisplayName() + " " + is.Type.DisplayName()},
				DefaultConfig:    sarifDefaultConfig{Level: typeToLevel(is.Type)},
			})
		}

		result := sarifResult{
			RuleID:  ruleID,
			Level:   typeToLevel(is.Type),
			Message: sarifMessage{Text: is.Description},
		}
		if is.FilePath != "" {
			loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: is.FilePath},
			}}
			if is.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: is.Line, StartColumn: is.Column}
			}
			result.Locations = append(result.Locations, loc)
		}
		results = append(results, result)
	}

	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:           "buildlens",
				Version:        report.Version,
				InformationURI: "https://github.com/dshills/buildlens",
				Rules:          rules,
			},
		},
		Results: results,
	}
	if report.RunID != 0 {
		run.AutomationDetails = &sarifAutomationDetail{ID: fmt.Sprintf("buildlens/%d", report.RunID)}
	}
	if report.HeadCommit != "" {
		run.VersionControl = []sarifVersionControl{{RevisionID: report.HeadCommit}}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs:    []sarifRun{run},
	}
}

// typeToLevel maps an issue type to a SARIF level.
func typeToLevel(t issue.Type) string {
	switch t {
	case issue.TypeError:
		return "error"
	case issue.TypeWarning:
		return "warning"
	default:
		return "note"
	}
}

// ruleIDFor groups results by reporting tool and type.
func ruleIDFor(is issue.Issue) string {
	tool := is.Tool
	if tool == "" {
		tool = issue.ToolGeneric
	}
	return fmt.Sprintf("buildlens/%s/%s", tool, is.Type)
}

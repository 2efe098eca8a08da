package domain

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-playground/validator/v10"

	"live_analysis/internal/errors"
)

var validate = validator.New()

// Perspective is the convention a win rate or score lead is expressed in.
// It is a display attribute and never travels without the value it qualifies.
type Perspective string

const (
	PerspectiveBlack   Perspective = "black"
	PerspectiveCurrent Perspective = "current"
)

func ParsePerspective(s string) (Perspective, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "b":
		return PerspectiveBlack, true
	case "current", "current_player", "sidetomove":
		return PerspectiveCurrent, true
	}
	return "", false
}

// EngineProfile describes how to launch one analysis engine installation.
type EngineProfile struct {
	Name      string `json:"name"`
	Path      string `json:"path" validate:"required"`
	Model     string `json:"model" validate:"omitempty,file"`
	Config    string `json:"config" validate:"omitempty,file"`
	ExtraArgs string `json:"extra_args"`
}

// Validate checks that the executable, model and config can be found before anything is spawned.
func (p EngineProfile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: engine profile %q: %v", errors.ErrConfigValidation, p.Name, err)
	}
	if _, err := exec.LookPath(p.Path); err != nil {
		return fmt.Errorf("%w: engine executable %q: %v", errors.ErrConfigValidation, p.Path, err)
	}
	return nil
}

// Args returns the command line for the analysis subcommand.
func (p EngineProfile) Args() []string {
	args := []string{"analysis"}
	if p.Model != "" {
		args = append(args, "-model", p.Model)
	}
	if p.Config != "" {
		args = append(args, "-config", p.Config)
	}
	return append(args, strings.Fields(p.ExtraArgs)...)
}

type AnalysisSettings struct {
	MaxVisits               *int              `json:"max_visits,omitempty" validate:"omitempty,gte=0"`
	MaxTime                 *float64          `json:"max_time,omitempty" validate:"omitempty,gte=0"`
	ReportDuringSearchEvery *float64          `json:"report_during_search_every,omitempty" validate:"omitempty,gte=0"`
	IncludeOwnership        bool              `json:"include_ownership"`
	IncludePolicy           bool              `json:"include_policy"`
	AdvancedParams          map[string]string `json:"advanced_params,omitempty"`

	// display only
	MaxCandidates int         `json:"max_candidates" validate:"gte=0"`
	Perspective   Perspective `json:"perspective" validate:"omitempty,oneof=black current"`
}

func (s AnalysisSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: settings: %v", errors.ErrConfigValidation, err)
	}
	return nil
}

func DefaultAnalysisSettings() AnalysisSettings {
	maxVisits := 1000
	every := 0.5
	return AnalysisSettings{
		MaxVisits:               &maxVisits,
		ReportDuringSearchEvery: &every,
		IncludeOwnership:        true,
		IncludePolicy:           true,
		MaxCandidates:           20,
		Perspective:             PerspectiveCurrent,
	}
}

// Clone copies pointer and map fields so a snapshot cannot be mutated through the original.
func (s AnalysisSettings) Clone() AnalysisSettings {
	out := s
	if s.MaxVisits != nil {
		v := *s.MaxVisits
		out.MaxVisits = &v
	}
	if s.MaxTime != nil {
		v := *s.MaxTime
		out.MaxTime = &v
	}
	if s.ReportDuringSearchEvery != nil {
		v := *s.ReportDuringSearchEvery
		out.ReportDuringSearchEvery = &v
	}
	if s.AdvancedParams != nil {
		out.AdvancedParams = make(map[string]string, len(s.AdvancedParams))
		for k, v := range s.AdvancedParams {
			out.AdvancedParams[k] = v
		}
	}
	return out
}

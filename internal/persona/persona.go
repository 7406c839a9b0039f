package persona

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StyleSettings are a twin's conversational-style knobs. Values default to
// the neutral midpoint when absent from the authored source, so an unset knob
// produces no style directive.
type StyleSettings struct {
	Formality      float64  `json:"formality_level" yaml:"formality_level"`
	HumorFrequency float64  `json:"humor_frequency" yaml:"humor_frequency"`
	TechnicalDepth float64  `json:"technical_depth" yaml:"technical_depth"`
	ResponseLength string   `json:"response_length_preference" yaml:"response_length_preference"`
	CommonPhrases  []string `json:"common_phrases" yaml:"common_phrases"`
}

// DefaultStyle returns the neutral settings used when a knob is not authored.
func DefaultStyle() StyleSettings {
	return StyleSettings{
		Formality:      0.5,
		HumorFrequency: 0.5,
		TechnicalDepth: 0.5,
		ResponseLength: "medium",
	}
}

// UnmarshalJSON fills absent knobs with the neutral defaults; an authored
// zero survives (an author may genuinely want formality 0).
func (s *StyleSettings) UnmarshalJSON(b []byte) error {
	type plain StyleSettings
	p := plain(DefaultStyle())
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = StyleSettings(p)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for the authored catalog files.
func (s *StyleSettings) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain StyleSettings
	p := plain(DefaultStyle())
	if err := unmarshal(&p); err != nil {
		return err
	}
	*s = StyleSettings(p)
	return nil
}

// Twin is a configured persona: identity, traits, style knobs, background.
type Twin struct {
	TwinID     string
	Name       string
	Traits     []string
	Style      StyleSettings
	Background string
	CreatedAt  time.Time
}

// StyleInstructions translates the style knobs into directive sentences for
// prompts. Thresholds are strict inequalities: a knob exactly at a threshold
// (including the defaults) produces no directive.
func (t *Twin) StyleInstructions() string {
	var out []string
	s := t.Style

	if s.Formality < 0.3 {
		out = append(out, "Speak very casually, use contractions and informal language")
	} else if s.Formality > 0.7 {
		out = append(out, "Maintain a more formal, professional tone")
	}

	if s.HumorFrequency > 0.6 {
		out = append(out, "Include light humor and witty observations when appropriate")
	}

	if s.TechnicalDepth > 0.7 {
		out = append(out, "Don't shy away from technical details and precise terminology")
	}

	if len(s.CommonPhrases) > 0 {
		out = append(out, fmt.Sprintf("Naturally incorporate these phrases: %s", strings.Join(s.CommonPhrases, ", ")))
	}

	switch s.ResponseLength {
	case "short":
		out = append(out, "Keep responses concise and to the point")
	case "long":
		out = append(out, "Feel free to elaborate and provide detailed responses")
	}

	return strings.Join(out, "\n")
}

package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"simulation-server/internal/models"
	"simulation-server/shared/utils"

	"go.uber.org/zap"
)

// TextCommandExtractor asks a text backend for a JSON-encoded hologram command.
type TextCommandExtractor struct {
	text   TextGenerator
	logger *zap.Logger
}

var _ CommandExtractor = (*TextCommandExtractor)(nil)

func NewTextCommandExtractor(text TextGenerator, logger *zap.Logger) *TextCommandExtractor {
	return &TextCommandExtractor{text: text, logger: logger.Named("CommandExtractor")}
}

type extractedCommand struct {
	Action         string `json:"action"`
	TargetHologram string `json:"targetHologram"`
}

// ExtractCommand возвращает ошибку на любой невалидный ответ, чтобы вызывающий перешел к эвристике.
func (e *TextCommandExtractor) ExtractCommand(ctx context.Context, text string, knownHolograms []string) (*models.HologramCommand, error) {
	var b strings.Builder
	b.WriteString("Classify a command that manages story characters (holograms). ")
	b.WriteString(`Respond with a JSON object {"action": "...", "targetHologram": "..."} only. `)
	b.WriteString("action must be one of: create, update, remove, transfer. ")
	b.WriteString("targetHologram is the name of the existing hologram the command refers to, or empty. ")
	if len(knownHolograms) > 0 {
		fmt.Fprintf(&b, "Existing holograms: %s.", strings.Join(knownHolograms, ", "))
	} else {
		b.WriteString("There are no existing holograms.")
	}

	temperature := 0.0
	start := time.Now()
	raw, _, err := e.text.GenerateText(ctx, b.String(), text, GenerationParams{Temperature: &temperature, JSON: true})
	MetricsRecordCall(CapabilityCommand, e.text.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}

	payload := utils.ExtractJSONObject(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no command json in response", models.ErrFatalProvider)
	}
	var out extractedCommand
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed command json: %v", models.ErrFatalProvider, err)
	}
	action := models.HologramAction(strings.ToLower(strings.TrimSpace(out.Action)))
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", models.ErrFatalProvider, out.Action)
	}
	cmd := &models.HologramCommand{Action: action}
	// Цель приводится к известному написанию; неизвестные имена отбрасываются
	target := strings.TrimSpace(out.TargetHologram)
	for _, name := range knownHolograms {
		if target != "" && strings.EqualFold(name, target) {
			cmd.TargetHologram = name
			break
		}
	}
	if target != "" && cmd.TargetHologram == "" {
		e.logger.Debug("Extracted target is not a known hologram", zap.String("target", target))
	}
	return cmd, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"simulation-server/internal/models"
	"simulation-server/internal/repository"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
)

// namespace для детерминированных UUIDv5: повторный посев обновляет те же записи.
var namespace = uuid.MustParse("6f1c7a52-3c1e-4c55-9a7e-3f1f0b8f2d41")

// HologramSeed явное описание персонажа в каталоге.
type HologramSeed struct {
	Name               string   `yaml:"name"`
	ActingInstructions []string `yaml:"actingInstructions"`
	Descriptions       []string `yaml:"descriptions"`
	Wardrobe           []string `yaml:"wardrobe"`
}

// Story одна история каталога. Если holograms не заданы, персонажи выводятся из characters.
type Story struct {
	models.StoryDefinition `yaml:",inline"`
	Holograms              []HologramSeed `yaml:"holograms"`
}

type file struct {
	Stories []Story `yaml:"stories"`
}

// LoadStories читает YAML-каталог и валидирует каждое определение.
func LoadStories(path string) ([]Story, error) {
	var f file
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("failed to read story catalogue %s: %w", path, err)
	}
	for i := range f.Stories {
		def := &f.Stories[i].StoryDefinition
		if def.Version == 0 {
			def.Version = models.StoryDefinitionVersion
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("story #%d (%q): %w", i+1, def.Title, err)
		}
	}
	return f.Stories, nil
}

// SimulationID детерминированный идентификатор симуляции по названию истории.
func SimulationID(title string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("simulation:"+strings.ToLower(strings.TrimSpace(title))))
}

// HologramID детерминированный идентификатор персонажа внутри симуляции.
func HologramID(simulationID uuid.UUID, name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("hologram:"+simulationID.String()+":"+strings.ToLower(strings.TrimSpace(name))))
}

// Seed upserts one simulation per story and its holograms. Safe to run on every start.
func Seed(ctx context.Context, simulations repository.SimulationRepository, holograms repository.HologramRepository, stories []Story, logger *zap.Logger) error {
	log := logger.Named("CatalogSeed")
	now := time.Now().UTC()
	for _, story := range stories {
		raw, err := json.Marshal(story.StoryDefinition)
		if err != nil {
			return fmt.Errorf("failed to encode story %q: %w", story.Title, err)
		}
		sim := &models.Simulation{
			ID:        SimulationID(story.Title),
			Title:     story.Title,
			Story:     raw,
			CreatedAt: now,
		}
		if err := simulations.Upsert(ctx, sim); err != nil {
			return fmt.Errorf("failed to seed simulation %q: %w", story.Title, err)
		}

		seeds := story.Holograms
		if len(seeds) == 0 {
			seeds = deriveHolograms(story.Characters)
		}
		for i, seed := range seeds {
			h := &models.Hologram{
				ID:                 HologramID(sim.ID, seed.Name),
				SimulationID:       sim.ID,
				Name:               seed.Name,
				ActingInstructions: seed.ActingInstructions,
				Descriptions:       seed.Descriptions,
				Wardrobe:           seed.Wardrobe,
				// Порядок каталога сохраняется в сортировке по created_at
				CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			}
			if err := holograms.Upsert(ctx, h); err != nil {
				return fmt.Errorf("failed to seed hologram %q of %q: %w", seed.Name, story.Title, err)
			}
		}
		log.Info("Story seeded",
			zap.String("simulationID", sim.ID.String()),
			zap.String("title", story.Title),
			zap.Int("holograms", len(seeds)),
		)
	}
	return nil
}

func deriveHolograms(characters []models.StoryCharacter) []HologramSeed {
	seeds := make([]HologramSeed, 0, len(characters))
	for _, c := range characters {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		seed := HologramSeed{Name: strings.TrimSpace(c.Name)}
		if c.Personality != "" {
			seed.ActingInstructions = append(seed.ActingInstructions, "Act "+strings.TrimSuffix(c.Personality, "."))
		}
		if c.Role != "" {
			seed.ActingInstructions = append(seed.ActingInstructions, "Stay true to the role of "+strings.ToLower(c.Role))
			seed.Wardrobe = append(seed.Wardrobe, "Attire befitting a "+strings.ToLower(c.Role))
		}
		if c.Backstory != "" {
			seed.Descriptions = append(seed.Descriptions, c.Backstory)
		}
		if c.Personality != "" {
			seed.Descriptions = append(seed.Descriptions, "Personality: "+c.Personality)
		}
		seeds = append(seeds, seed)
	}
	return seeds
}

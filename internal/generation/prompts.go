package generation

import (
	"fmt"
	"strings"

	"simulation-server/internal/models"
)

const (
	// HistoryWindow сколько предыдущих ходов попадает в контекст.
	HistoryWindow = 5
	// ImagePromptWindow сколько предыдущих image_prompt собирается для визуальной преемственности.
	ImagePromptWindow = 3
	// imagePromptsInPrompt сколько из них реально цитируется в промпте изображения.
	imagePromptsInPrompt = 2

	turnExcerptLen       = 200
	optionsNarrativeLen  = 300
	videoSceneExcerptLen = 200
	// VideoMinNarrativeLen ход попадает в видео, только если текст длиннее.
	VideoMinNarrativeLen = 50
	// VideoMaxScenes максимум сцен в промпте видео.
	VideoMaxScenes = 8

	defaultImageStyle = "cinematic"
	optionPadding     = "Take a different approach to the situation"
)

// FallbackOptions подставляются, если генерация вариантов не удалась.
var FallbackOptions = []string{
	"Investigate the area more carefully",
	"Try a different approach",
	"Look for clues or hidden elements",
	"Take decisive action",
}

// OpeningOptions варианты первого хода прохождения.
var OpeningOptions = []string{
	"Explore the area carefully",
	"Look for clues or hidden passages",
	"Call out to see if anyone is nearby",
	"Examine the mysterious glow",
}

// OpeningUserPrompt user_prompt первого хода.
const OpeningUserPrompt = "Start the story"

// Excerpt обрезает строку до n рун.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CharacterContext is the one-line character description used in image prompts.
func CharacterContext(h *models.Hologram) string {
	if h == nil {
		return ""
	}
	if len(h.Descriptions) == 0 {
		return h.Name
	}
	return fmt.Sprintf("%s: %s", h.Name, strings.Join(h.Descriptions, ", "))
}

// RecentImagePrompts returns up to ImagePromptWindow non-empty image prompts, oldest first.
func RecentImagePrompts(turns []*models.Turn) []string {
	var prompts []string
	for _, t := range turns {
		if strings.TrimSpace(t.ImagePrompt) != "" {
			prompts = append(prompts, t.ImagePrompt)
		}
	}
	if len(prompts) > ImagePromptWindow {
		prompts = prompts[len(prompts)-ImagePromptWindow:]
	}
	return prompts
}

// BuildNarrativePrompt compiles the narrator system prompt and the user input for a turn.
func BuildNarrativePrompt(sc StoryContext) (system string, user string) {
	var b strings.Builder
	story := sc.Story
	tone := story.Tone
	if tone == "" {
		tone = "adventurous"
	}

	fmt.Fprintf(&b, "You are the narrator of an interactive story called %q. ", story.Title)
	fmt.Fprintf(&b, "Genre: %s. Setting: %s. Tone: %s. ", story.Genre, story.Setting, tone)
	if h := sc.Hologram; h != nil {
		fmt.Fprintf(&b, "The user is playing as %s", h.Name)
		if len(h.Descriptions) > 0 {
			fmt.Fprintf(&b, ", %s", strings.Join(h.Descriptions, ", "))
		}
		b.WriteString(". ")
		if len(h.ActingInstructions) > 0 {
			fmt.Fprintf(&b, "Character personality: %s. ", strings.Join(h.ActingInstructions, ", "))
		}
	}
	if story.StoryArc.Beginning != "" {
		fmt.Fprintf(&b, "Story context: %s. ", story.StoryArc.Beginning)
	}
	b.WriteString("Respond with a vivid, descriptive continuation of the story that: ")
	b.WriteString("1. Advances the plot based on the user's action ")
	b.WriteString("2. Maintains character consistency ")
	b.WriteString("3. Creates atmosphere and tension ")
	b.WriteString("4. Sets up interesting choices for the next turn ")
	b.WriteString("5. Keeps the story engaging and immersive ")
	b.WriteString("6. Is 2-3 paragraphs long ")
	b.WriteString("7. Ends with a clear situation that requires the user to make a decision")
	system = b.String()

	var u strings.Builder
	history := sc.History
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	if len(history) > 0 {
		u.WriteString("Previous story progression: ")
		for _, t := range history {
			fmt.Fprintf(&u, "Turn %d: User said %q. Result: %s... ", t.TurnNumber, t.UserPrompt, Excerpt(t.AIResponse, turnExcerptLen))
		}
	}
	fmt.Fprintf(&u, "Current turn %d: The user says %q.", sc.TurnNumber, sc.UserAction)
	return system, u.String()
}

// BuildOptionsPrompt asks for four next actions based on the fresh narrative.
func BuildOptionsPrompt(sc StoryContext, narrative string) string {
	name := "the character"
	personality := ""
	if h := sc.Hologram; h != nil {
		name = h.Name
		personality = strings.Join(h.ActingInstructions, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Based on this story continuation: %q...\n\n", Excerpt(narrative, optionsNarrativeLen))
	fmt.Fprintf(&b, "Generate %d different action options that %s could take next. Each option should:\n", models.SuggestedOptionsCount, name)
	b.WriteString("1. Be 1-2 sentences long\n")
	b.WriteString("2. Be specific and actionable\n")
	if personality != "" {
		fmt.Fprintf(&b, "3. Fit the character's personality: %s\n", personality)
	} else {
		b.WriteString("3. Fit the character's personality\n")
	}
	b.WriteString("4. Advance the story in different directions\n")
	b.WriteString("5. Be interesting and engaging\n\n")
	fmt.Fprintf(&b, "Return only the %d options, one per line, without numbering or bullets.", models.SuggestedOptionsCount)
	return b.String()
}

// ParseOptions extracts exactly SuggestedOptionsCount options from a model reply.
// Нумерация и маркеры списков срезаются; недостающие варианты дополняются.
func ParseOptions(raw string) ([]string, error) {
	var options []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(stripListMarker(strings.TrimSpace(line)))
		if line == "" {
			continue
		}
		options = append(options, line)
		if len(options) == models.SuggestedOptionsCount {
			break
		}
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: model returned no options", ErrAIGenerationFailed)
	}
	for len(options) < models.SuggestedOptionsCount {
		options = append(options, optionPadding)
	}
	return options, nil
}

func stripListMarker(line string) string {
	line = strings.TrimLeft(line, "-*• ")
	// "1." / "1)" / "12."
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return line[i+1:]
	}
	return line
}

// BuildImagePrompt compiles a continuity-aware image prompt.
func BuildImagePrompt(req ImageRequest) string {
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = defaultImageStyle
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s image for an interactive story. ", style)
	fmt.Fprintf(&b, "Scene: %s. ", strings.TrimSpace(req.SceneDescription))
	if req.CharacterContext != "" {
		fmt.Fprintf(&b, "Character: %s. ", req.CharacterContext)
	}
	if len(req.PreviousPrompts) > 0 {
		prev := req.PreviousPrompts
		if len(prev) > imagePromptsInPrompt {
			prev = prev[len(prev)-imagePromptsInPrompt:]
		}
		b.WriteString("Maintain visual consistency with previous scenes. ")
		fmt.Fprintf(&b, "Previous scene elements to consider: %s. ", strings.Join(prev, ", "))
	}
	fmt.Fprintf(&b, "Style: %s, high quality, detailed, atmospheric lighting. ", style)
	b.WriteString("Avoid text or words in the image. Focus on the environment, characters, and mood.")
	return b.String()
}

// SelectVideoScenes returns the turns that become scenes of the highlight video.
func SelectVideoScenes(turns []*models.Turn) []*models.Turn {
	var scenes []*models.Turn
	for _, t := range turns {
		if len([]rune(t.AIResponse)) <= VideoMinNarrativeLen {
			continue
		}
		scenes = append(scenes, t)
		if len(scenes) == VideoMaxScenes {
			break
		}
	}
	return scenes
}

// BuildVideoPrompt compiles the highlight prompt from up to VideoMaxScenes turns.
func BuildVideoPrompt(turns []*models.Turn, title string) string {
	scenes := SelectVideoScenes(turns)

	var b strings.Builder
	fmt.Fprintf(&b, "Create a cinematic highlight video for the story %q. ", title)
	b.WriteString("The video should show the key moments of the story: ")
	parts := make([]string, 0, len(scenes))
	var visuals []string
	for i, t := range scenes {
		parts = append(parts, fmt.Sprintf("Scene %d: %s...", i+1, Excerpt(t.AIResponse, videoSceneExcerptLen)))
		if strings.TrimSpace(t.ImagePrompt) != "" {
			visuals = append(visuals, fmt.Sprintf("Scene %d: %s", i+1, Excerpt(t.ImagePrompt, videoSceneExcerptLen)))
		}
	}
	b.WriteString(strings.Join(parts, " "))
	if len(visuals) > 0 {
		fmt.Fprintf(&b, " Visual continuity: %s.", strings.Join(visuals, "; "))
	}
	b.WriteString(" Style: cinematic, dramatic lighting, smooth transitions between scenes. ")
	b.WriteString("Duration: 8 seconds. ")
	b.WriteString("Focus on the most dramatic and visually interesting moments. ")
	b.WriteString("Maintain visual consistency throughout the video.")
	return b.String()
}

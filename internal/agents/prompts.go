package agents

import (
	"fmt"
	"strings"

	"after2am-server/internal/models"
)

// Шкала интенсивности, общая для редактора и писателя.
const intensityGuide = `1 = cozy / calming
2 = melancholic
3 = emotionally heavy but grounded
4 = unsettling
5 = intense but non-graphic`

const editorSystemPrompt = `You are the night editor of the "after 2am stories" website. ` +
	`You review anonymous late-night story submissions and return a strict JSON verdict. ` +
	`Output JSON only, no commentary, no markdown.`

const writerSystemPrompt = `You are the night writer of the "after 2am stories" website. ` +
	`You write short, quiet, first-person stories that feel typed late at night. ` +
	`Output JSON only, no commentary, no markdown.`

func moodList() string {
	names := make([]string, 0, 5)
	for _, m := range models.AllMoods() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func categoryList() string {
	names := make([]string, 0, 5)
	for _, c := range models.AllCategories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// editorUserPrompt собирает промпт модерации пользовательской заявки.
func editorUserPrompt(content string) string {
	return fmt.Sprintf(`Evaluate the following story for the "after 2am stories" website.

CORE RULES
- Preserve the author's voice.
- Do NOT invent events, symbols, or imagery.
- All metadata must be directly grounded in the story text.

TASKS:

1. Generate a TITLE:
   - Max 6 words
   - Must be specific and concrete
   - Must reference a real detail, action, or recurring thought in the story
   - Must NOT summarize the entire story
   - Should feel like a quiet label, not a headline

2. Assign ONE mood from: %s

3. Assign 1 to 3 categories from: %s

4. Generate 3-5 lowercase tags:
   - Derived only from ideas present in the text
   - No generic tags like "story" or "thoughts"

5. Assign an intensity level from 1 to 5:
%s

6. Decide if the story is approved for publishing.

SEO METADATA (quiet, grounded, non-clickbait):

7. Generate an SEO title (max 60 characters): calm, descriptive, specific.

8. Generate an SEO description (120-160 characters): no spoilers, no emojis,
   reads like an invitation, not a hook.

9. Generate 1-5 SEO keywords grounded in the story.

10. Format the story to HTML:
   - Convert content body to HTML with <p> tags for paragraphs and <br /> tags for line breaks
   - Fill in the htmlBody field

11. Generate an excerpt (about 100 characters): no spoilers, invitation-like.

12. Generate an author handle:
   - Fully anonymous, username-style, lowercase only
   - 1-2 short words, no numbers or emojis
   - Tired, reflective, understated after-2am presence

13. Estimate readTime in minutes and wordCount.

If the story is NOT approved:
- Set approved to false
- Provide a short, gentle note and suggest ONE safe rewrite direction
- Do NOT mention policy or rules
- Do NOT fill in the publishable fields

STORY:
"""
%s
"""

Respond with a single JSON object with fields:
approved (bool), notes (string), title, mood, categories (array), tags (array),
intensity (int), seo {title, description, keywords}, htmlBody, excerpt, author,
readTime (int, minutes), wordCount (int).`, moodList(), categoryList(), intensityGuide, content)
}

// writerUserPrompt собирает промпт генерации истории по (mood, category, intensity).
func writerUserPrompt(mood models.Mood, category models.Category, intensity int) string {
	return fmt.Sprintf(`Write a short after-2am story using the inputs below and return the result in structured JSON.

Inputs
Mood: %s
Category: %s
Intensity: %d

CORE PRINCIPLES
- Write like a real person typing late at night.
- Keep the voice human, quiet, and grounded.
- Do NOT invent dramatic events, symbols, or metaphors.
- Everything must feel ordinary and believable.

Apply the following intensity level to the story:
%s

TASKS:
- Write the STORY: first-person, takes place after 2am, ordinary setting
  (room, phone glow, silence, stillness), feels like a private thought or
  confession, no dramatic twists or clean resolution, 120-250 words.
- Generate a TITLE: max 6 words, specific and concrete, quiet label.
- Generate 3-5 lowercase tags grounded in the story text.
- Generate an SEO title (max 60 characters), an SEO description (120-160
  characters, invitation-like), and 1-5 SEO keywords.
- Format the story to HTML: <p> for paragraphs, <br /> for line breaks.
- Generate an excerpt (about 100 characters), no spoilers.
- Generate an anonymous lowercase author handle, 1-2 short words.
- Estimate readTime in minutes and wordCount.

OUTPUT RULES
- Output STRICT JSON only, one object with fields:
  title, mood, categories (array), tags (array), intensity (int),
  seo {title, description, keywords}, htmlBody, excerpt, author,
  readTime (int), wordCount (int).
- No commentary, no markdown, no extra text.`, mood, category, intensity, intensityGuide)
}

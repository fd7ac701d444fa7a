// Package seed loads challenge fixtures from JSON and upserts them into a
// store, normalizing free-text entries into multiple choice where a plausible
// distractor pool exists.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strings"
	"time"

	"bridgebites-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

// chunkSize bounds one upsert batch.
const chunkSize = 50

// ChallengeWriter is the store side of seeding.
type ChallengeWriter interface {
	UpsertChallenges(ctx context.Context, challenges []domain.Challenge) error
}

// Record is one challenge fixture as it appears in the seed file.
type Record struct {
	ID            string            `json:"id" validate:"required"`
	Title         string            `json:"title" validate:"required"`
	Description   string            `json:"description"`
	Type          string            `json:"type" validate:"required,oneof=audio visual quiz cultural"`
	Country       string            `json:"country" validate:"required"`
	Flag          string            `json:"flag"`
	Points        int               `json:"points" validate:"gte=0"`
	Difficulty    string            `json:"difficulty"`
	Options       *domain.ChoiceSet `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	IsDaily       bool              `json:"is_daily"`
}

// Load reads and validates the seed file.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	validate := validator.New()
	for i, r := range records {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("seed record %d (%s): %w", i, r.ID, err)
		}
	}
	return records, nil
}

// Run normalizes the records and upserts them in chunks.
func Run(ctx context.Context, store ChallengeWriter, records []Record) error {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	challenges := make([]domain.Challenge, 0, len(records))
	now := time.Now().UTC()
	for _, r := range records {
		challenges = append(challenges, r.toChallenge(rnd, now))
	}

	for start := 0; start < len(challenges); start += chunkSize {
		end := start + chunkSize
		if end > len(challenges) {
			end = len(challenges)
		}
		if err := store.UpsertChallenges(ctx, challenges[start:end]); err != nil {
			return fmt.Errorf("upsert chunk %d..%d: %w", start, end-1, err)
		}
	}
	return nil
}

func (r Record) toChallenge(rnd *rand.Rand, now time.Time) domain.Challenge {
	c := domain.Challenge{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Type:          domain.ChallengeType(r.Type),
		Country:       r.Country,
		Flag:          r.Flag,
		Points:        r.Points,
		Difficulty:    r.Difficulty,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		IsDaily:       r.IsDaily,
		CreatedAt:     now,
	}
	if c.Type == domain.ChallengeQuiz || c.Type == domain.ChallengeVisual {
		c.Options = ensureChoices(c, rnd)
	}
	return c
}

// Distractor pools keyed by the kind of question, matched by keyword.
var distractorPools = map[string][]string{
	"capitals": {"Lyon", "Marseille", "Nice", "Lille", "Bordeaux", "Toulouse", "Rome", "Milan", "Venice", "Naples", "Tokyo", "Osaka", "Kyoto", "Beijing", "Shanghai", "Seoul", "Busan", "Madrid", "Barcelona", "Valencia", "Lisbon", "Porto", "Athens", "Cairo", "Istanbul", "Ankara", "Prague", "Budapest", "Warsaw", "Krakow", "Riga", "Vilnius", "Tallinn", "Helsinki", "Oslo", "Stockholm"},
	"dishes":   {"Paella", "Tapas", "Gazpacho", "Churros", "Sushi", "Ramen", "Tempura", "Tacos", "Burrito", "Enchiladas", "Tandoori", "Biryani", "Samosa", "Pho", "Tagine", "Couscous", "Baklava", "Hummus", "Falafel", "Asado", "Empanadas"},
	"landmarks": {"Eiffel Tower", "Big Ben", "CN Tower", "Taj Mahal", "Machu Picchu", "Statue of Liberty", "Christ the Redeemer", "Pyramids of Giza", "Sagrada Familia", "Sydney Opera House", "Hagia Sophia", "Great Wall of China"},
	"instruments": {"Guitar", "Violin", "Accordion", "Oboe", "Kora", "Djembe", "Tabla", "Sitar", "Piano", "Bagpipes", "Marimba"},
	"animals":   {"Kangaroo", "Koala", "Panda", "Lemur", "Lynx", "Moose", "Beaver", "Polar Bear", "Elephant", "Tiger", "Giraffe"},
	"festivals": {"Diwali", "Holi", "Eid", "Vesak", "Carnival", "Oktoberfest", "Sinulog"},
	"artists":   {"Van Gogh", "Beethoven", "Mozart", "Michelangelo", "Da Vinci", "Raphael", "Rembrandt"},
	"genres":    {"K-Pop", "J-Pop", "Reggae", "Salsa", "Samba", "Hip-Hop", "Merengue"},
	"generic":   {"Option A", "Option B", "Option C", "Option D", "Another option", "None of the above"},
}

var poolMatchers = []struct {
	pool string
	re   *regexp.Regexp
}{
	{"capitals", regexp.MustCompile(`(?i)capital|city`)},
	{"dishes", regexp.MustCompile(`(?i)dish|food|cuisine|dessert|meal|pastry|cake`)},
	{"landmarks", regexp.MustCompile(`(?i)landmark|cathedral|tower|monument|statue|temple|bridge|site`)},
	{"instruments", regexp.MustCompile(`(?i)instrument|drum|guitar|piano|violin`)},
	{"animals", regexp.MustCompile(`(?i)animal|bear|kangaroo|lemur`)},
	{"festivals", regexp.MustCompile(`(?i)festival|holiday|carnival`)},
	{"artists", regexp.MustCompile(`(?i)artist|painter|composer|who painted|who wrote`)},
	{"genres", regexp.MustCompile(`(?i)genre|music|pop`)},
}

// ensureChoices guarantees a usable choice set: the stored choices when they
// already include at least two entries and the correct answer, otherwise the
// correct answer plus distractors drawn from the best-matching pool.
func ensureChoices(c domain.Challenge, rnd *rand.Rand) *domain.ChoiceSet {
	correct := strings.TrimSpace(c.CorrectAnswer)
	if c.Options.Usable() {
		choices := c.Options.Choices
		if correct != "" && !contains(choices, correct) {
			choices = append([]string{correct}, choices...)
		}
		return &domain.ChoiceSet{Choices: dedupe(choices, 4)}
	}

	pool := distractorPools["generic"]
	text := c.Title + " " + c.Description
	for _, m := range poolMatchers {
		if m.re.MatchString(text) {
			pool = distractorPools[m.pool]
			break
		}
	}

	choices := []string{}
	if correct != "" {
		choices = append(choices, correct)
	}
	choices = append(choices, pick(pool, choices, 3, rnd)...)
	for len(choices) < 2 {
		choices = append(choices, pick(distractorPools["generic"], choices, 1, rnd)...)
	}
	return &domain.ChoiceSet{Choices: dedupe(choices, 4)}
}

func pick(pool, exclude []string, n int, rnd *rand.Rand) []string {
	candidates := make([]string, 0, len(pool))
	for _, p := range pool {
		if !contains(exclude, p) {
			candidates = append(candidates, p)
		}
	}
	out := make([]string, 0, n)
	for i := 0; i < n && len(candidates) > 0; i++ {
		idx := rnd.Intn(len(candidates))
		out = append(out, candidates[idx])
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}
	return out
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func dedupe(list []string, max int) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == max {
			break
		}
	}
	return out
}

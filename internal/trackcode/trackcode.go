// Package trackcode генерирует человекочитаемые коды отслеживания заявок.
// Генератор сам по себе НЕ гарантирует глобальную уникальность: коллизии
// разрешаются повтором на unique-constraint при записи в БД.
package trackcode

import (
	"math/rand"
	"strings"
	"sync"
)

// Алфавит суффикса без визуально неоднозначных символов (0,1,i,l,o).
// 31 символ, 4 знака - примерно 20 бит энтропии.
const suffixAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const suffixLength = 4

// Словарь читаемых слов для префикса кода.
var words = []string{
	"moon", "quiet", "echo", "late", "still", "empty", "tired", "alone",
	"blue", "soft", "drift", "awake", "dim", "slow", "hollow", "near",
	"far", "low", "cold", "warm", "heavy", "thin", "faint", "dark",
	"mild", "calm", "rest", "wait", "pause", "after", "night", "sleep",
	"miss", "softly", "bare", "open", "lost", "hold", "fade",
	"stillness", "echoes", "tiredness", "latehour",
}

// Generator выдает коды вида "<слово>-<суффикс>", например "hollow-k7mp".
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New создает генератор с указанным источником случайности.
func New(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Generate возвращает новый трек-код.
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(words[g.rnd.Intn(len(words))])
	sb.WriteByte('-')
	for i := 0; i < suffixLength; i++ {
		sb.WriteByte(suffixAlphabet[g.rnd.Intn(len(suffixAlphabet))])
	}
	return sb.String()
}

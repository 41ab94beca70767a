package fakeact

import (
	"strconv"
	"strings"

	"github.com/tidwall/sjson"
)

// pathEscaper makes an arbitrary combatant name safe as one sjson path
// component.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// kv is one member of an object built in document order. sjson appends
// new keys, so the rendered order matches the slice order.
type kv struct {
	key   string
	value any
}

func build(fields ...kv) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	for _, f := range fields {
		path := pathEscaper.Replace(f.key)
		if raw, ok := f.value.([]byte); ok {
			doc, err = sjson.SetRawBytes(doc, path, raw)
		} else {
			doc, err = sjson.SetBytes(doc, path, f.value)
		}
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func rate(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Snapshot renders the seq-th CombatData message for cfg.
func Snapshot(seq int, cfg Config) ([]byte, error) {
	personal := cfg.BaseDPS + float64(seq)*cfg.Step
	selfRate := rate(personal)
	if cfg.NonFiniteEvery > 0 && seq > 0 && seq%cfg.NonFiniteEvery == 0 {
		selfRate = "NaN"
	}

	var combatants []kv
	if cfg.Chocobo {
		row, err := build(
			kv{"name", "Chocobo (YOU)"},
			kv{"Job", ""},
			kv{"EncDPS", rate(personal / 10)},
		)
		if err != nil {
			return nil, err
		}
		combatants = append(combatants, kv{"Chocobo (YOU)", row})
	}

	selfKey := "YOU"
	if cfg.Party {
		selfKey = cfg.PlayerName + " (YOU)"
	}
	self, err := build(
		kv{"name", selfKey},
		kv{"Job", cfg.Job},
		kv{"EncDPS", selfRate},
		kv{"encdps", selfRate},
		kv{"DPS", rate(personal * 0.9)},
	)
	if err != nil {
		return nil, err
	}
	combatants = append(combatants, kv{selfKey, self})

	total := personal
	if cfg.Party {
		for i, mate := range partyMembers {
			v := personal * (0.6 + 0.1*float64(i))
			total += v
			row, err := build(
				kv{"name", mate.name},
				kv{"Job", mate.job},
				kv{"EncDPS", rate(v)},
			)
			if err != nil {
				return nil, err
			}
			combatants = append(combatants, kv{mate.name, row})
		}
	}

	table, err := build(combatants...)
	if err != nil {
		return nil, err
	}
	encounter, err := build(
		kv{"title", "Striking Dummy"},
		kv{"duration", strconv.Itoa(seq)},
		kv{"ENCDPS", rate(total)},
	)
	if err != nil {
		return nil, err
	}
	return build(
		kv{"type", "CombatData"},
		kv{"isActive", "true"},
		kv{"Encounter", encounter},
		kv{"Combatant", table},
	)
}

// LogLine renders a non-CombatData event the client must ignore.
func LogLine(seq int) ([]byte, error) {
	return build(
		kv{"type", "LogLine"},
		kv{"line", []string{"00", strconv.Itoa(seq)}},
	)
}

var partyMembers = []struct{ name, job string }{
	{"Tank Friend", "Pld"},
	{"Healer Friend", "Sch"},
	{"Caster Friend", "Blm"},
}

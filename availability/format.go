package availability

import (
	"strconv"
	"strings"
	"time"
)

// FormatDayText monta a visão em texto de um único dia:
//
//	For January 15, 2026:
//	7:20 PM has 4 spots
//
// Horários sem vaga ficam de fora. O cabeçalho sai mesmo quando nenhum
// horário sobra.
func FormatDayText(date string, slots []Slot) string {
	var b strings.Builder
	writeDayHeader(&b, date)
	for _, s := range slots {
		writeSlotLine(&b, s)
	}
	return b.String()
}

// FormatRangeText agrupa a visão em texto por data, na ordem em que as
// datas aparecem na resposta, com uma linha em branco entre os dias.
func FormatRangeText(slots []Slot) string {
	var dates []string
	byDate := make(map[string][]Slot)
	for _, s := range slots {
		if _, seen := byDate[s.Date]; !seen {
			dates = append(dates, s.Date)
		}
		byDate[s.Date] = append(byDate[s.Date], s)
	}

	var b strings.Builder
	for i, d := range dates {
		if i > 0 {
			b.WriteString("\n")
		}
		writeDayHeader(&b, d)
		for _, s := range byDate[d] {
			writeSlotLine(&b, s)
		}
	}
	return b.String()
}

func writeDayHeader(b *strings.Builder, date string) {
	label := date
	if d, err := time.Parse("2006-01-02", date); err == nil {
		label = d.Format("January 2, 2006")
	}
	b.WriteString("For " + label + ":\n")
}

func writeSlotLine(b *strings.Builder, s Slot) {
	if s.Spots <= 0 {
		return
	}
	b.WriteString(formatClock(s.Time) + " has " + strconv.Itoa(s.Spots) + " spots\n")
}

// formatClock normaliza "7:20PM" para "7:20 PM". Valor fora do padrão passa
// como veio.
func formatClock(v string) string {
	for _, layout := range []string{"3:04PM", "3:04 PM"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("3:04 PM")
		}
	}
	return v
}

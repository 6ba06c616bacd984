package availability

import "strings"

// Parse achata o envelope da Peek em Slots, um por horário. Slots com zero
// vagas são mantidos; quem filtra é a visão em texto.
func Parse(doc Document) []Slot {
	slots := make([]Slot, 0, len(doc.Data))
	for _, res := range doc.Data {
		attrs := res.Attributes
		start, end := splitDatetimeRange(attrs.DatetimeRange)
		slots = append(slots, Slot{
			Time:             attrs.Time,
			Date:             attrs.Date,
			Spots:            attrs.Spots,
			AvailabilityMode: attrs.AvailabilityMode,
			StartTime:        start,
			EndTime:          end,
		})
	}
	return slots
}

// splitDatetimeRange separa o formato "[inicio, fim)" do campo
// datetime-range. Sem o separador ", " o fim é desconhecido.
func splitDatetimeRange(r string) (string, *string) {
	start, end, found := strings.Cut(r, ", ")
	start = strings.TrimPrefix(start, "[")
	if !found {
		return start, nil
	}
	end = strings.TrimSuffix(end, ")")
	return start, &end
}

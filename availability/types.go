package availability

// Slot é um horário de disponibilidade já achatado para o formato servido
// pelo proxy.
type Slot struct {
	Time             string `json:"time"`
	Date             string `json:"date"`
	Spots            int    `json:"spots"`
	AvailabilityMode string `json:"availability_mode"`

	// StartTime fica vazio quando o datetime-range não traz início legível.
	StartTime string `json:"start_time"`

	// EndTime é nil quando o datetime-range vem sem a parte final; no JSON
	// isso vira null, que é o que o cliente espera.
	EndTime *string `json:"end_time"`
}

// Document é o envelope JSON:API da Peek. Só os atributos consumidos pelo
// proxy são decodificados; o resto do payload é ignorado.
type Document struct {
	Data []Resource `json:"data"`
}

type Resource struct {
	Attributes Attributes `json:"attributes"`
}

// Attributes segue os nomes kebab-case do JSON:API da Peek.
type Attributes struct {
	Time             string `json:"time"`
	Date             string `json:"date"`
	Spots            int    `json:"spots"`
	AvailabilityMode string `json:"availability-mode"`
	DatetimeRange    string `json:"datetime-range"`
}

package domain

// Decision é o resultado de uma checagem de admissão.
//
// Os campos espelham o payload servido ao cliente. Remaining é nil quando o
// valor é desconhecido (limiter desabilitado ou erro no store); nesse caso o
// JSON sai com "remaining": null, nunca 0. ResetInSeconds é nil quando não
// há estimativa de reset.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	Remaining      *int   `json:"remaining"`
	Limit          int    `json:"limit,omitempty"`
	WindowSeconds  int    `json:"window_seconds,omitempty"`
	ResetInSeconds *int   `json:"reset_in_seconds,omitempty"`
	Note           string `json:"note,omitempty"`
	Error          string `json:"error,omitempty"`
}

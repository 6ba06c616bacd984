package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL é o endereço público de reservas da Peek.
const DefaultBaseURL = "https://book.peek.com"

const defaultTimeout = 15 * time.Second

// ClientConfig parametriza o Client. APIKey, ActivityID e TicketID são
// obrigatórios; o resto tem padrão.
type ClientConfig struct {
	// BaseURL aponta para a Peek. Padrão DefaultBaseURL.
	BaseURL string

	// APIKey entra no header "Authorization: Key <APIKey>".
	APIKey string

	// ActivityID e TicketID identificam a atividade consultada e o tipo de
	// ingresso usado na cotação de vagas.
	ActivityID string
	TicketID   string

	// BookingRefID é a referência de origem enviada por padrão nas
	// consultas; pode ser sobrescrita por requisição. Vazio omite o
	// parâmetro.
	BookingRefID string

	// UseLegacyAPI é repassado à rota de intervalo de datas da Peek.
	UseLegacyAPI bool

	// Timeout da chamada HTTP. Padrão 15s.
	Timeout time.Duration

	// Guard aplica as proteções de saída. Nil desliga.
	Guard *Guard

	// HTTPClient injeta um client customizado (testes). Nil cria um com o
	// Timeout acima.
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// Client consulta horários de disponibilidade na Peek.
type Client struct {
	http   *http.Client
	cfg    ClientConfig
	logger zerolog.Logger
}

// NewClient valida a configuração e monta o cliente.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("availability: api key is required")
	}
	if cfg.ActivityID == "" {
		return nil, errors.New("availability: activity id is required")
	}
	if cfg.TicketID == "" {
		return nil, errors.New("availability: ticket id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{http: httpClient, cfg: cfg, logger: cfg.Logger}, nil
}

// FetchDay consulta os horários de um único dia (YYYY-MM-DD).
func (c *Client) FetchDay(ctx context.Context, date, bookingRefID string) (Document, error) {
	params := url.Values{}
	params.Set("activity_id", c.cfg.ActivityID)
	params.Set("tickets[0][quantity]", "1")
	params.Set("tickets[0][ticket_id]", c.cfg.TicketID)
	if ref := c.bookingRef(bookingRefID); ref != "" {
		params.Set("src_booking_refid", ref)
	}

	endpoint := c.cfg.BaseURL + "/services/api/availability-dates/" + url.PathEscape(date) + "/availability-times"
	return c.get(ctx, endpoint, params)
}

// RangeQuery parametriza a consulta por intervalo fechado de datas.
type RangeQuery struct {
	StartDate string
	EndDate   string

	// Opcionais, repassados à Peek como vieram.
	BookingRefID string
	Namespace    string
	PCID         string
}

// FetchRange consulta os horários de todas as datas do intervalo.
// A rota de intervalo da Peek usa nomes kebab-case, diferente da rota de
// dia único.
func (c *Client) FetchRange(ctx context.Context, q RangeQuery) (Document, error) {
	params := url.Values{}
	params.Set("activity-id", c.cfg.ActivityID)
	params.Set("start-date", q.StartDate)
	params.Set("end-date", q.EndDate)
	params.Set("tickets[0][ticket-id]", c.cfg.TicketID)
	params.Set("tickets[0][quantity]", "1")
	params.Set("shouldNotAddTickets", "false")
	params.Set("use-legacy-api", strconv.FormatBool(c.cfg.UseLegacyAPI))
	if ref := c.bookingRef(q.BookingRefID); ref != "" {
		params.Set("src-booking-refid", ref)
	}
	if q.Namespace != "" {
		params.Set("namespace", q.Namespace)
	}
	if q.PCID != "" {
		params.Set("pc-id", q.PCID)
	}

	return c.get(ctx, c.cfg.BaseURL+"/services/api/availability-dates", params)
}

func (c *Client) bookingRef(override string) string {
	if override != "" {
		return override
	}
	return c.cfg.BookingRefID
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (Document, error) {
	release, ok := c.cfg.Guard.Acquire(ctx)
	if !ok {
		return Document{}, ErrBusy
	}
	defer release()

	if !c.cfg.Guard.Allow(c.cfg.ActivityID) {
		return Document{}, ErrThrottled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Document{}, fmt.Errorf("build peek request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("peek request failed")
		return Document{}, fmt.Errorf("peek request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn().Int("status", res.StatusCode).Str("endpoint", endpoint).Msg("peek returned an error status")
		return Document{}, fmt.Errorf("peek responded %s", res.Status)
	}

	var doc Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode peek response: %w", err)
	}
	return doc, nil
}

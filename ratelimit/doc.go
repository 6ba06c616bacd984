// Package ratelimit fornece o controle de admissão por janela deslizante
// usado na frente dos endpoints de disponibilidade.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (Decision, CounterStore, StatsStore), sem net/http
//   - application: caso de uso da janela deslizante (IsAllowed/Reset), sem net/http
//   - infra: implementações concretas (Redis, memória) e os stores de estatística
//   - ratelimit (este pacote): middleware gin + tradução da decisão para status/headers
//
// Fluxo em uma requisição:
//
//  1. Extrai o identificador (constante default, IP do cliente ou header)
//  2. Chama application.Service.IsAllowed para obter a Decision
//  3. Se negado, responde 429 com o payload de limite excedido
//  4. Se permitido, segue para o handler de disponibilidade
//
// O limiter é fail-open por política: sem REDIS_URL configurada, ou com o
// store fora do ar, toda checagem permite. Indisponibilidade de Redis nunca
// derruba o serviço.
//
// Variáveis de ambiente do binário (cmd/proxy) controlam o comportamento,
// como RATE_LIMIT_MAX_REQUESTS, RATE_LIMIT_WINDOW_SECONDS e RATE_ENABLED.
package ratelimit

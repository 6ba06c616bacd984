// Package infra contém as implementações concretas dos contratos de
// ratelimit/domain.
//
// Hoje existem dois CounterStore:
//
//   - RedisCounterStore: sorted sets do Redis, recomendado em produção e
//     obrigatório quando há mais de uma instância do proxy.
//   - MemoryCounterStore: tudo em memória do processo. Útil para testes e
//     desenvolvimento local, não compartilha estado entre instâncias.
//
// E dois StatsStore para a contabilidade de decisões (Redis e memória),
// seguindo a mesma divisão.
package infra

// Package domain define contratos e tipos de domínio para o rate limit
// por janela deslizante.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a regra de
// admissão dos detalhes do armazenamento (Redis, memória, etc).
package domain

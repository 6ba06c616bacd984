// Package application implementa o caso de uso de admissão por janela
// deslizante sobre os contratos de ratelimit/domain.
//
// Sem dependência de net/http: a tradução da decisão para status e headers
// fica no pacote ratelimit (middleware).
package application
